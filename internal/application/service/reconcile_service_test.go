package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/mt940"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStatement = `:20:S240315
:25:NL12RABO0123456789
:28C:00042/001
:60F:C240314EUR0,00
:61:2403150315C25,00NTRFNONREF//REF1
:86:/REMI/Factuur test-2024-001/
:61:2403150315C10,00NTRFNONREF//REF2
:86:/REMI/Factuur test-2024-999/
:62F:C240315EUR35,00
`

type mockStorage struct {
	saved map[string][]byte
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.saved[path], nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.saved[path]
	return ok
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/archive/" + relativePath
}

func newReconcileService(env *testEnv, archive port.StatementArchive) ReconcileService {
	return NewReconcileService(
		mt940.NewParser(nil),
		&memInvoiceRepo{db: env.db},
		env.ledger,
		archive,
		env.notifier,
		entity.PlatformIDEAL,
		func() time.Time { return env.now },
		env.logger,
	)
}

func TestReconcileService_ParseIsRepeatable(t *testing.T) {
	env := newTestEnv(t)
	svc := newReconcileService(env, nil)
	file := StatementFile{Name: "march.sta", Content: []byte(testStatement)}

	once, err := svc.Parse(context.Background(), []StatementFile{file})
	require.NoError(t, err)
	require.Len(t, once, 2)

	thrice, err := svc.Parse(context.Background(), []StatementFile{file, file, file})
	require.NoError(t, err)
	require.Len(t, thrice, 6)
	for i := 0; i < 3; i++ {
		assert.Equal(t, once, thrice[i*2:(i+1)*2])
	}
}

func TestReconcileService_ApplyIsNotDeduplicated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReconcileService(env, nil)
	view := env.createInvoice(t, entity.InvoiceStatusNew, product("100", 1, 0))

	candidates, err := svc.Parse(ctx, []StatementFile{{Name: "march.sta", Content: []byte(testStatement)}})
	require.NoError(t, err)
	match := candidates[0]
	require.Equal(t, "test-2024-001", match.Invoice)

	_, err = svc.Apply(ctx, []mt940.Candidate{match})
	require.NoError(t, err)
	totals, err := env.ledger.Totals(ctx, view.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", totals.TotalPaid.StringFixed(2))

	_, err = svc.Apply(ctx, []mt940.Candidate{match})
	require.NoError(t, err)
	totals, err = env.ledger.Totals(ctx, view.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", totals.TotalPaid.StringFixed(2))
}

func TestReconcileService_Reconcile(t *testing.T) {
	env := newTestEnv(t)
	archive := &mockStorage{}
	svc := newReconcileService(env, archive)
	view := env.createInvoice(t, entity.InvoiceStatusNew, product("25", 1, 0))

	result, err := svc.Reconcile(context.Background(), []StatementFile{{Name: "march.sta", Content: []byte(testStatement)}})
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, view.Invoice.ID, result.Applied[0].InvoiceID)
	assert.True(t, result.Applied[0].MarkedPaid)
	assert.Equal(t, entity.InvoiceStatusPaid, env.db.invoice(t, view.Invoice.ID).Status)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "test-2024-999", result.Failed[0].Candidate.Invoice)
	assert.Equal(t, ReasonInvoiceNotFound, result.Failed[0].Reason)

	assert.Len(t, archive.saved, 1)
	assert.Equal(t, []string{"Bank reconciliation needs review"}, env.notifier.subjects)
}

func TestReconcileService_CaseInsensitiveLookupAndBadAmount(t *testing.T) {
	env := newTestEnv(t)
	svc := newReconcileService(env, nil)
	view := env.createInvoice(t, entity.InvoiceStatusNew, product("25", 1, 0))

	result, err := svc.Apply(context.Background(), []mt940.Candidate{
		{Invoice: "TEST-2024-001", Amount: "5.00"},
		{Invoice: "test-2024-001", Amount: "n/a"},
	})
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, view.Invoice.ID, result.Applied[0].InvoiceID)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ReasonInvalidAmount, result.Failed[0].Reason)
}

// lockingInvoiceRepo fails every sequence lookup after the first n
type lockingInvoiceRepo struct {
	*memInvoiceRepo
	n     int
	calls int
}

func (r *lockingInvoiceRepo) GetBySequenceNumber(ctx context.Context, sequenceNumber string) (*entity.Invoice, error) {
	r.calls++
	if r.calls > r.n {
		return nil, errors.New("database is locked")
	}
	return r.memInvoiceRepo.GetBySequenceNumber(ctx, sequenceNumber)
}

func TestReconcileService_AbortKeepsPartialResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createInvoice(t, entity.InvoiceStatusNew, product("100", 1, 0))
	env.createInvoice(t, entity.InvoiceStatusNew, product("100", 1, 0))

	svc := NewReconcileService(
		mt940.NewParser(nil),
		&lockingInvoiceRepo{memInvoiceRepo: &memInvoiceRepo{db: env.db}, n: 1},
		env.ledger,
		nil,
		env.notifier,
		entity.PlatformIDEAL,
		func() time.Time { return env.now },
		env.logger,
	)

	candidates := []mt940.Candidate{
		{Invoice: "test-2024-001", Amount: "25.00"},
		{Invoice: "test-2024-002", Amount: "30.00"},
		{Invoice: "test-2024-001", Amount: "5.00"},
	}
	result, err := svc.Apply(ctx, candidates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	require.NotNil(t, result)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, first.Invoice.ID, result.Applied[0].InvoiceID)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, ReasonAborted, result.Failed[0].Reason)
	assert.Equal(t, "test-2024-002", result.Failed[0].Candidate.Invoice)
	assert.Equal(t, ReasonNotAttempted, result.Failed[1].Reason)

	totals, err := env.ledger.Totals(ctx, first.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", totals.TotalPaid.StringFixed(2))
}

func TestReconcileService_ReconcileReportsAbort(t *testing.T) {
	env := newTestEnv(t)
	env.createInvoice(t, entity.InvoiceStatusNew, product("100", 1, 0))

	svc := NewReconcileService(
		mt940.NewParser(nil),
		&lockingInvoiceRepo{memInvoiceRepo: &memInvoiceRepo{db: env.db}, n: 1},
		env.ledger,
		nil,
		env.notifier,
		entity.PlatformIDEAL,
		func() time.Time { return env.now },
		env.logger,
	)

	result, err := svc.Reconcile(context.Background(), []StatementFile{{Name: "march.sta", Content: []byte(testStatement)}})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Applied, 1)
	assert.Equal(t, []string{"Bank reconciliation aborted"}, env.notifier.subjects)
}

func TestReconcileService_EmptyStatement(t *testing.T) {
	env := newTestEnv(t)
	svc := newReconcileService(env, nil)

	candidates, err := svc.Parse(context.Background(), []StatementFile{{Name: "empty.sta", Content: []byte("")}})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

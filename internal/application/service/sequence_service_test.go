package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_InterleavedTracks(t *testing.T) {
	env := newTestEnv(t)

	var got []string
	for _, status := range []entity.InvoiceStatus{
		entity.InvoiceStatusNew,
		entity.InvoiceStatusReservation,
		entity.InvoiceStatusNew,
		entity.InvoiceStatusReservation,
	} {
		got = append(got, env.createInvoice(t, status).Invoice.SequenceNumber)
	}

	assert.Equal(t, []string{"test-2024-001", "test-PF-2024-001", "test-2024-002", "test-PF-2024-002"}, got)
}

func TestSequence_NoGapsOrRepeats(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 12; i++ {
		view := env.createInvoice(t, entity.InvoiceStatusNew)
		assert.Equal(t, fmt.Sprintf("test-2024-%03d", i), view.Invoice.SequenceNumber)
	}
}

func TestSequence_ProFormaNeverReused(t *testing.T) {
	env := newTestEnv(t)

	first := env.createInvoice(t, entity.InvoiceStatusReservation)
	require.Equal(t, "test-PF-2024-001", first.Invoice.SequenceNumber)

	env.db.deleteInvoice(first.Invoice.ID)

	second := env.createInvoice(t, entity.InvoiceStatusReservation)
	assert.Equal(t, "test-PF-2024-002", second.Invoice.SequenceNumber)
}

func TestSequence_RealNumberScanIgnoresOtherYearsAndProForma(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.db.invoices[1] = entity.Invoice{ID: 1, SequenceNumber: "test-2023-041"}
	env.db.invoices[2] = entity.Invoice{ID: 2, SequenceNumber: "test-PF-2024-077"}

	next, err := env.sequences.NextRealNumber(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "test-2024-001", next)

	env.db.invoices[3] = entity.Invoice{ID: 3, SequenceNumber: "test-2024-009"}
	next, err = env.sequences.NextRealNumber(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "test-2024-010", next)
}

func TestSequence_WithoutPrefix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	number, err := env.sequences.NextRealNumber(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-001", number)

	pf, err := env.sequences.NextProFormaNumber(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "PF-2024-001", pf)

	pf, err = env.sequences.NextProFormaNumber(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "PF-2024-002", pf)
}

func TestSequence_RejectsUnmatchablePrefix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.sequences.NextRealNumber(ctx, "INV/NL")
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = env.sequences.NextProFormaNumber(ctx, "acme nl")
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Nil(t, env.db.counter)

	require.NoError(t, (&memCompanyRepo{db: env.db}).Create(ctx, &entity.CompanyDetails{Name: "Bad", Prefix: "acme-PF"}))
	_, err = env.invoices.Create(ctx, CreateInvoiceRequest{
		ClientID:    env.client.ID,
		Title:       "Order",
		Description: "Webshop order",
		Status:      entity.InvoiceStatusNew,
	})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prefix", verr.Field)
}

func TestSequence_ProFormaCounterRollsOverYear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.sequences.NextProFormaNumber(ctx, "test")
	require.NoError(t, err)

	env.now = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	next, err := env.sequences.NextProFormaNumber(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "test-PF-2025-001", next)
	assert.Equal(t, "test-PF-2025-001", env.db.counter.Number)
}

func TestSequence_CorruptCounter(t *testing.T) {
	env := newTestEnv(t)
	env.db.counter = &entity.ProFormaCounter{Number: "garbage"}

	_, err := env.sequences.NextProFormaNumber(context.Background(), "test")
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

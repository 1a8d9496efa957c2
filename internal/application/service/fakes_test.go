package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// memDB is an in-memory store. Rows are kept by value so a snapshot can roll
// a failed transaction back.
type memDB struct {
	invoices   map[int64]entity.Invoice
	products   []entity.InvoiceProduct
	payments   []entity.InvoicePayment
	platforms  []entity.PaymentPlatform
	counter    *entity.ProFormaCounter
	gatewayTxs map[int64]entity.GatewayTransaction
	clients    map[int64]entity.Client
	companies  []entity.CompanyDetails
	nextID     int64
}

func newMemDB() *memDB {
	return &memDB{
		invoices:   make(map[int64]entity.Invoice),
		gatewayTxs: make(map[int64]entity.GatewayTransaction),
		clients:    make(map[int64]entity.Client),
		platforms: []entity.PaymentPlatform{
			{ID: 1, Name: entity.PlatformManual},
			{ID: 2, Name: entity.PlatformIDEAL},
			{ID: 3, Name: entity.PlatformMollie},
		},
		nextID: 100,
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) snapshot() *memDB {
	cp := *db
	cp.invoices = make(map[int64]entity.Invoice, len(db.invoices))
	for k, v := range db.invoices {
		cp.invoices[k] = v
	}
	cp.gatewayTxs = make(map[int64]entity.GatewayTransaction, len(db.gatewayTxs))
	for k, v := range db.gatewayTxs {
		cp.gatewayTxs[k] = v
	}
	cp.products = append([]entity.InvoiceProduct(nil), db.products...)
	cp.payments = append([]entity.InvoicePayment(nil), db.payments...)
	if db.counter != nil {
		c := *db.counter
		cp.counter = &c
	}
	return &cp
}

func (db *memDB) restore(snap *memDB) {
	clients, companies, platforms := db.clients, db.companies, db.platforms
	*db = *snap
	db.clients, db.companies, db.platforms = clients, companies, platforms
}

func (db *memDB) deleteInvoice(id int64) {
	delete(db.invoices, id)
}

func (db *memDB) invoice(t *testing.T, id int64) entity.Invoice {
	t.Helper()
	inv, ok := db.invoices[id]
	if !ok {
		t.Fatalf("invoice %d not stored", id)
	}
	return inv
}

type memTxKey struct{}

type memTxManager struct {
	db *memDB
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	snap := m.db.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.db.restore(snap)
		return err
	}
	return nil
}

type memInvoiceRepo struct{ db *memDB }

func (r *memInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	for _, existing := range r.db.invoices {
		if strings.EqualFold(existing.SequenceNumber, invoice.SequenceNumber) {
			return fmt.Errorf("duplicate sequence number %s", invoice.SequenceNumber)
		}
	}
	invoice.ID = r.db.id()
	r.db.invoices[invoice.ID] = *invoice
	return nil
}

func (r *memInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, ok := r.db.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r *memInvoiceRepo) GetBySequenceNumber(ctx context.Context, sequenceNumber string) (*entity.Invoice, error) {
	for _, inv := range r.db.invoices {
		if strings.EqualFold(inv.SequenceNumber, sequenceNumber) {
			found := inv
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memInvoiceRepo) Update(ctx context.Context, invoice *entity.Invoice) error {
	if _, ok := r.db.invoices[invoice.ID]; !ok {
		return fmt.Errorf("invoice %d not found", invoice.ID)
	}
	r.db.invoices[invoice.ID] = *invoice
	return nil
}

func (r *memInvoiceRepo) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.db.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		found := inv
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) SequenceNumbersForYear(ctx context.Context, year int) ([]string, error) {
	var out []string
	needle := fmt.Sprintf("%04d-", year)
	for _, inv := range r.db.invoices {
		if strings.Contains(inv.SequenceNumber, needle) {
			out = append(out, inv.SequenceNumber)
		}
	}
	return out, nil
}

type memProductRepo struct{ db *memDB }

func (r *memProductRepo) CreateBatch(ctx context.Context, products []*entity.InvoiceProduct) error {
	for _, p := range products {
		p.ID = r.db.id()
		r.db.products = append(r.db.products, *p)
	}
	return nil
}

func (r *memProductRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoiceProduct, error) {
	out := []*entity.InvoiceProduct{}
	for _, p := range r.db.products {
		if p.InvoiceID == invoiceID {
			found := p
			out = append(out, &found)
		}
	}
	return out, nil
}

type memPaymentRepo struct{ db *memDB }

func (r *memPaymentRepo) Create(ctx context.Context, payment *entity.InvoicePayment) error {
	payment.ID = r.db.id()
	r.db.payments = append(r.db.payments, *payment)
	return nil
}

func (r *memPaymentRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoicePayment, error) {
	out := []*entity.InvoicePayment{}
	for _, p := range r.db.payments {
		if p.InvoiceID == invoiceID {
			found := p
			out = append(out, &found)
		}
	}
	return out, nil
}

type memPlatformRepo struct{ db *memDB }

func (r *memPlatformRepo) GetByName(ctx context.Context, name string) (*entity.PaymentPlatform, error) {
	for _, p := range r.db.platforms {
		if p.Name == name {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memPlatformRepo) List(ctx context.Context) ([]*entity.PaymentPlatform, error) {
	out := make([]*entity.PaymentPlatform, 0, len(r.db.platforms))
	for _, p := range r.db.platforms {
		found := p
		out = append(out, &found)
	}
	return out, nil
}

type memCounterRepo struct{ db *memDB }

func (r *memCounterRepo) Get(ctx context.Context) (*entity.ProFormaCounter, error) {
	if r.db.counter == nil {
		return nil, nil
	}
	c := *r.db.counter
	return &c, nil
}

func (r *memCounterRepo) Create(ctx context.Context, counter *entity.ProFormaCounter) error {
	if r.db.counter != nil {
		return entity.ErrDuplicateCounter
	}
	c := *counter
	r.db.counter = &c
	return nil
}

func (r *memCounterRepo) Update(ctx context.Context, counter *entity.ProFormaCounter) error {
	c := *counter
	r.db.counter = &c
	return nil
}

type memGatewayRepo struct{ db *memDB }

func (r *memGatewayRepo) Create(ctx context.Context, tx *entity.GatewayTransaction) error {
	tx.ID = r.db.id()
	r.db.gatewayTxs[tx.ID] = *tx
	return nil
}

func (r *memGatewayRepo) GetByID(ctx context.Context, id int64) (*entity.GatewayTransaction, error) {
	tx, ok := r.db.gatewayTxs[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (r *memGatewayRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.GatewayTransaction, error) {
	for _, tx := range r.db.gatewayTxs {
		if tx.Description == externalID {
			found := tx
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memGatewayRepo) Update(ctx context.Context, tx *entity.GatewayTransaction) error {
	r.db.gatewayTxs[tx.ID] = *tx
	return nil
}

func (r *memGatewayRepo) ListOpenBefore(ctx context.Context, before time.Time) ([]*entity.GatewayTransaction, error) {
	var out []*entity.GatewayTransaction
	for _, tx := range r.db.gatewayTxs {
		if tx.Status == entity.GatewayStatusOpen && tx.CreatedAt.Before(before) {
			found := tx
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memGatewayRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.GatewayTransaction, error) {
	var out []*entity.GatewayTransaction
	for _, tx := range r.db.gatewayTxs {
		if tx.InvoiceID == invoiceID {
			found := tx
			out = append(out, &found)
		}
	}
	return out, nil
}

type memClientRepo struct {
	db    *memDB
	calls int
}

func (r *memClientRepo) Create(ctx context.Context, client *entity.Client) error {
	client.ID = r.db.id()
	r.db.clients[client.ID] = *client
	return nil
}

func (r *memClientRepo) GetByID(ctx context.Context, id int64) (*entity.Client, error) {
	r.calls++
	c, ok := r.db.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memClientRepo) GetByClientNumber(ctx context.Context, number string) (*entity.Client, error) {
	r.calls++
	for _, c := range r.db.clients {
		if c.ClientNumber == number {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memClientRepo) List(ctx context.Context) ([]*entity.Client, error) {
	r.calls++
	var out []*entity.Client
	for _, c := range r.db.clients {
		found := c
		out = append(out, &found)
	}
	return out, nil
}

type memCompanyRepo struct{ db *memDB }

func (r *memCompanyRepo) Create(ctx context.Context, details *entity.CompanyDetails) error {
	details.ID = r.db.id()
	r.db.companies = append(r.db.companies, *details)
	return nil
}

func (r *memCompanyRepo) Latest(ctx context.Context) (*entity.CompanyDetails, error) {
	if len(r.db.companies) == 0 {
		return nil, nil
	}
	latest := r.db.companies[len(r.db.companies)-1]
	return &latest, nil
}

type mockStock struct {
	adjustFunc func(ctx context.Context, reference string, lines []port.StockLine) error
	calls      [][]port.StockLine
}

func (m *mockStock) AdjustStock(ctx context.Context, reference string, lines []port.StockLine) error {
	m.calls = append(m.calls, lines)
	if m.adjustFunc != nil {
		return m.adjustFunc(ctx, reference, lines)
	}
	return nil
}

func (m *mockStock) ListProducts(ctx context.Context) ([]port.WarehouseProduct, error) {
	return []port.WarehouseProduct{}, nil
}

type mockMailer struct {
	err  error
	sent []string
}

func (m *mockMailer) SendInvoice(ctx context.Context, view *entity.InvoiceView, recipient string) error {
	m.sent = append(m.sent, recipient)
	return m.err
}

type mockNotifier struct {
	subjects []string
}

func (m *mockNotifier) NotifyOperator(ctx context.Context, subject, body string) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

type mockGateway struct {
	createFunc func(ctx context.Context, req port.GatewayPaymentRequest) (*port.GatewayPayment, error)
	payments   map[string]*port.GatewayPayment
	requests   []port.GatewayPaymentRequest
}

func (m *mockGateway) CreatePayment(ctx context.Context, req port.GatewayPaymentRequest) (*port.GatewayPayment, error) {
	m.requests = append(m.requests, req)
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	id := fmt.Sprintf("tr_%d", len(m.requests))
	p := &port.GatewayPayment{
		ID:          id,
		Status:      entity.GatewayStatusOpen,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CheckoutURL: "https://pay.example/" + id,
	}
	if m.payments == nil {
		m.payments = make(map[string]*port.GatewayPayment)
	}
	m.payments[id] = p
	return p, nil
}

func (m *mockGateway) GetPayment(ctx context.Context, id string) (*port.GatewayPayment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s: status 404", entity.ErrExternal, id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockGateway) ListIssuers(ctx context.Context) ([]port.Issuer, error) {
	return []port.Issuer{{ID: "ideal_INGBNL2A", Name: "ING"}}, nil
}

func (m *mockGateway) setStatus(id string, status entity.GatewayStatus) {
	m.payments[id].Status = status
}

type mockLogger struct {
	errors []string
	fields [][]interface{}
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
	m.fields = append(m.fields, keysAndValues)
}

func (m *mockLogger) loggedCritical() bool {
	for _, kv := range m.fields {
		for i := 0; i+1 < len(kv); i += 2 {
			if kv[i] == "critical" && kv[i+1] == true {
				return true
			}
		}
	}
	return false
}

// testEnv wires every service against one memDB
type testEnv struct {
	db        *memDB
	now       time.Time
	logger    *mockLogger
	stock     *mockStock
	mailer    *mockMailer
	notifier  *mockNotifier
	gateway   *mockGateway
	clients   *memClientRepo
	sequences SequenceService
	invoices  InvoiceService
	ledger    LedgerService
	gatewaySv GatewayService
	client    *entity.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       newMemDB(),
		now:      time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		logger:   &mockLogger{},
		stock:    &mockStock{},
		mailer:   &mockMailer{},
		notifier: &mockNotifier{},
		gateway:  &mockGateway{},
	}
	clock := func() time.Time { return env.now }

	txm := &memTxManager{db: env.db}
	invoiceRepo := &memInvoiceRepo{db: env.db}
	productRepo := &memProductRepo{db: env.db}
	paymentRepo := &memPaymentRepo{db: env.db}
	env.clients = &memClientRepo{db: env.db}

	env.client = &entity.Client{ClientNumber: "C-001", Name: "Acme BV", Email: "billing@acme.test"}
	if err := env.clients.Create(context.Background(), env.client); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if err := (&memCompanyRepo{db: env.db}).Create(context.Background(), &entity.CompanyDetails{Name: "Test BV", Prefix: "test"}); err != nil {
		t.Fatalf("seed company: %v", err)
	}

	env.sequences = NewSequenceService(invoiceRepo, &memCounterRepo{db: env.db}, txm, clock, env.logger)
	env.invoices = NewInvoiceService(
		invoiceRepo, productRepo, paymentRepo, &memCompanyRepo{db: env.db},
		NewClientDirectory(env.clients), env.sequences, env.stock, env.mailer, txm,
		InvoiceConfig{PaymentPeriod: 14 * 24 * time.Hour},
		clock, env.logger,
	)
	env.ledger = NewLedgerService(invoiceRepo, productRepo, paymentRepo, &memPlatformRepo{db: env.db}, env.invoices, txm, clock, env.logger)
	env.gatewaySv = NewGatewayService(
		env.gateway, &memGatewayRepo{db: env.db}, invoiceRepo, env.ledger, env.notifier, txm,
		GatewayConfig{PublicBaseURL: "https://invoicing.example/", RedirectURL: "https://shop.example/thanks"},
		clock, env.logger,
	)
	return env
}

// createInvoice creates an invoice for the seeded client
func (env *testEnv) createInvoice(t *testing.T, status entity.InvoiceStatus, products ...ProductInput) *entity.InvoiceView {
	t.Helper()
	view, err := env.invoices.Create(context.Background(), CreateInvoiceRequest{
		ClientID:    env.client.ID,
		Title:       "Order",
		Description: "Webshop order",
		Status:      status,
		Products:    products,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return view
}

func product(price string, qty, vat int) ProductInput {
	return ProductInput{Name: "Widget", SKU: "W-1", Price: decimal.RequireFromString(price), Quantity: qty, VATPercentage: vat}
}

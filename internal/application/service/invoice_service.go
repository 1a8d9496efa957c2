package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/sequence"
	"github.com/garyjia/invoicing/internal/domain/workflow"
	"github.com/garyjia/invoicing/pkg/utils"
	"github.com/shopspring/decimal"
)

// InvoiceConfig holds the invoicing rules that come from configuration
type InvoiceConfig struct {
	PaymentPeriod time.Duration
	DefaultPrefix string
}

// ProductInput is one requested invoice line
type ProductInput struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	VATPercentage int             `json:"vat_percentage"`
	Quantity      int             `json:"quantity"`
}

// CreateInvoiceRequest is the input of InvoiceService.Create. Either ClientID
// or ClientNumber identifies the client.
type CreateInvoiceRequest struct {
	ClientID     int64                `json:"client_id"`
	ClientNumber string               `json:"client_number"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Status       entity.InvoiceStatus `json:"status"`
	Products     []ProductInput       `json:"products"`
	SendMail     bool                 `json:"send_mail"`
}

// InvoiceService owns the invoice lifecycle
type InvoiceService interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*entity.InvoiceView, error)
	Get(ctx context.Context, id int64) (*entity.InvoiceView, error)
	GetBySequenceNumber(ctx context.Context, sequenceNumber string) (*entity.Invoice, error)
	List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.InvoiceListItem, error)
	MarkSent(ctx context.Context, id int64) (*entity.Invoice, error)
	SetPayed(ctx context.Context, id int64) (*entity.Invoice, error)
	ProFormaToRealInvoice(ctx context.Context, id int64) (*entity.Invoice, error)
	CancelProFormaInvoice(ctx context.Context, id int64) (*entity.Invoice, error)
}

type invoiceServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	productRepo port.ProductRepository
	paymentRepo port.PaymentRepository
	companyRepo port.CompanyRepository
	clients     port.ClientDirectory
	sequences   SequenceService
	stock       port.StockAdjuster
	mailer      port.InvoiceMailer
	txManager   port.TransactionManager
	cfg         InvoiceConfig
	now         func() time.Time
	logger      Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	productRepo port.ProductRepository,
	paymentRepo port.PaymentRepository,
	companyRepo port.CompanyRepository,
	clients port.ClientDirectory,
	sequences SequenceService,
	stock port.StockAdjuster,
	mailer port.InvoiceMailer,
	txManager port.TransactionManager,
	cfg InvoiceConfig,
	now func() time.Time,
	logger Logger,
) InvoiceService {
	if now == nil {
		now = time.Now
	}
	return &invoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		productRepo: productRepo,
		paymentRepo: paymentRepo,
		companyRepo: companyRepo,
		clients:     clients,
		sequences:   sequences,
		stock:       stock,
		mailer:      mailer,
		txManager:   txManager,
		cfg:         cfg,
		now:         now,
		logger:      logger,
	}
}

func validateCreate(req *CreateInvoiceRequest) error {
	if req.ClientID == 0 && strings.TrimSpace(req.ClientNumber) == "" {
		return entity.NewValidationError("client", "is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return entity.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return entity.NewValidationError("description", "is required")
	}

	switch req.Status {
	case "":
		req.Status = entity.InvoiceStatusNew
	case entity.InvoiceStatusNew, entity.InvoiceStatusReservation:
	default:
		return entity.NewValidationError("status", fmt.Sprintf("must be %q or %q", entity.InvoiceStatusNew, entity.InvoiceStatusReservation))
	}

	for i, p := range req.Products {
		field := fmt.Sprintf("products[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return entity.NewValidationError(field+".name", "is required")
		}
		if p.Quantity == 0 {
			return entity.NewValidationError(field+".quantity", "must not be zero")
		}
		if p.VATPercentage < 0 || p.VATPercentage > 100 {
			return entity.NewValidationError(field+".vat_percentage", "must be between 0 and 100")
		}
	}
	return nil
}

func (s *invoiceServiceImpl) resolveClient(ctx context.Context, req CreateInvoiceRequest) (*entity.Client, error) {
	if req.ClientID != 0 {
		return s.clients.FromPrimary(ctx, req.ClientID)
	}
	return s.clients.FromClientNumber(ctx, strings.TrimSpace(req.ClientNumber))
}

// Create allocates a number, stores the invoice and its products and takes
// the stock from the warehouse, all in one transaction. A warehouse failure
// rolls the invoice back.
func (s *invoiceServiceImpl) Create(ctx context.Context, req CreateInvoiceRequest) (*entity.InvoiceView, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	client, err := s.resolveClient(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	invoice := &entity.Invoice{
		Status:      req.Status,
		Title:       entity.NormalizeTitle(req.Title),
		Description: utils.SanitizeString(strings.TrimSpace(req.Description)),
		ClientID:    client.ID,
		DateCreated: now,
		DateDue:     entity.DueDate(now, s.cfg.PaymentPeriod),
	}

	var products []*entity.InvoiceProduct
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		prefix := s.cfg.DefaultPrefix
		company, err := s.companyRepo.Latest(txCtx)
		if err != nil {
			return fmt.Errorf("get company details: %w", err)
		}
		if company != nil {
			invoice.CompanyDetailsID = &company.ID
			prefix = company.Prefix
		}

		if invoice.Status == entity.InvoiceStatusReservation {
			invoice.SequenceNumber, err = s.sequences.NextProFormaNumber(txCtx, prefix)
		} else {
			invoice.SequenceNumber, err = s.sequences.NextRealNumber(txCtx, prefix)
		}
		if err != nil {
			return fmt.Errorf("allocate sequence number: %w", err)
		}

		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		products = make([]*entity.InvoiceProduct, 0, len(req.Products))
		lines := make([]port.StockLine, 0, len(req.Products))
		for _, p := range req.Products {
			products = append(products, &entity.InvoiceProduct{
				InvoiceID:     invoice.ID,
				Name:          strings.TrimSpace(p.Name),
				SKU:           strings.TrimSpace(p.SKU),
				Price:         p.Price,
				VATPercentage: p.VATPercentage,
				Quantity:      p.Quantity,
			})
			lines = append(lines, port.StockLine{SKU: p.SKU, Name: p.Name, Quantity: p.Quantity})
		}
		if len(products) == 0 {
			return nil
		}

		if err := s.productRepo.CreateBatch(txCtx, products); err != nil {
			return fmt.Errorf("create products: %w", err)
		}
		if err := s.stock.AdjustStock(txCtx, invoice.SequenceNumber, lines); err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create invoice", "error", err, "client_id", client.ID)
		return nil, err
	}

	s.logger.Info("Invoice created",
		"invoice_id", invoice.ID,
		"sequence_number", invoice.SequenceNumber,
		"status", invoice.Status)

	view := &entity.InvoiceView{
		Invoice:  invoice,
		Client:   client,
		Products: products,
		Payments: []*entity.InvoicePayment{},
		Totals:   ComputeTotals(products, nil),
		Overdue:  invoice.IsOverdue(now),
	}

	if req.SendMail {
		s.sendMail(ctx, view)
	}
	return view, nil
}

// sendMail runs after commit; a delivery failure does not undo the invoice
func (s *invoiceServiceImpl) sendMail(ctx context.Context, view *entity.InvoiceView) {
	if view.Client == nil || view.Client.Email == "" {
		s.logger.Info("Invoice mail skipped, client has no email", "invoice_id", view.Invoice.ID)
		return
	}
	if err := s.mailer.SendInvoice(ctx, view, view.Client.Email); err != nil {
		s.logger.Error("Failed to send invoice mail", "error", err, "invoice_id", view.Invoice.ID)
	}
}

func (s *invoiceServiceImpl) load(ctx context.Context, id int64) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: id %d", entity.ErrInvoiceNotFound, id)
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) Get(ctx context.Context, id int64) (*entity.InvoiceView, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	products, err := s.productRepo.GetByInvoiceID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	payments, err := s.paymentRepo.GetByInvoiceID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}

	client, err := s.clients.FromPrimary(ctx, invoice.ClientID)
	if err != nil {
		s.logger.Error("Failed to load invoice client", "error", err, "invoice_id", id)
		client = nil
	}

	return &entity.InvoiceView{
		Invoice:  invoice,
		Client:   client,
		Products: products,
		Payments: payments,
		Totals:   ComputeTotals(products, payments),
		Overdue:  invoice.IsOverdue(s.now()),
	}, nil
}

func (s *invoiceServiceImpl) GetBySequenceNumber(ctx context.Context, sequenceNumber string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetBySequenceNumber(ctx, strings.TrimSpace(sequenceNumber))
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvoiceNotFound, sequenceNumber)
	}
	return invoice, nil
}

// List returns invoices newest first with their overdue flag
func (s *invoiceServiceImpl) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.InvoiceListItem, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, entity.NewValidationError("status", "unknown invoice status")
	}

	invoices, err := s.invoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	now := s.now()
	items := make([]*entity.InvoiceListItem, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, &entity.InvoiceListItem{Invoice: *inv, Overdue: inv.IsOverdue(now)})
	}
	return items, nil
}

// transition loads the invoice, lets fn change it and stores the result
func (s *invoiceServiceImpl) transition(ctx context.Context, id int64, action string, fn func(ctx context.Context, inv *entity.Invoice) error) (*entity.Invoice, error) {
	var invoice *entity.Invoice
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if err := fn(txCtx, inv); err != nil {
			return err
		}
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		invoice = inv
		return nil
	})
	if err != nil {
		s.logger.Error("Invoice transition failed", "error", err, "invoice_id", id, "action", action)
		return nil, err
	}

	s.logger.Info("Invoice transition",
		"invoice_id", id,
		"action", action,
		"sequence_number", invoice.SequenceNumber,
		"status", invoice.Status)
	return invoice, nil
}

func (s *invoiceServiceImpl) MarkSent(ctx context.Context, id int64) (*entity.Invoice, error) {
	return s.transition(ctx, id, "send", func(ctx context.Context, inv *entity.Invoice) error {
		return workflow.Apply(inv, workflow.TriggerSend)
	})
}

// SetPayed marks the invoice paid. A pro-forma invoice is converted to a
// real invoice first.
func (s *invoiceServiceImpl) SetPayed(ctx context.Context, id int64) (*entity.Invoice, error) {
	return s.transition(ctx, id, "pay", func(ctx context.Context, inv *entity.Invoice) error {
		if inv.IsCanceled() {
			return entity.ErrInvoiceCanceled
		}
		if sequence.IsProForma(inv.SequenceNumber) {
			if err := s.convert(ctx, inv); err != nil {
				return err
			}
		}
		return workflow.Apply(inv, workflow.TriggerPay)
	})
}

// ProFormaToRealInvoice replaces the pro-forma number with a real one. A
// paid invoice stays paid, anything else becomes new.
func (s *invoiceServiceImpl) ProFormaToRealInvoice(ctx context.Context, id int64) (*entity.Invoice, error) {
	return s.transition(ctx, id, "convert", func(ctx context.Context, inv *entity.Invoice) error {
		if inv.IsCanceled() {
			return entity.ErrInvoiceCanceled
		}
		if !sequence.IsProForma(inv.SequenceNumber) {
			return entity.ErrNotProForma
		}
		return s.convert(ctx, inv)
	})
}

func (s *invoiceServiceImpl) convert(ctx context.Context, inv *entity.Invoice) error {
	if err := workflow.Apply(inv, workflow.TriggerConvert); err != nil {
		return err
	}

	prefix := s.cfg.DefaultPrefix
	if parsed := sequence.PrefixOf(inv.SequenceNumber); parsed != "" {
		prefix = parsed
	}
	number, err := s.sequences.NextRealNumber(ctx, prefix)
	if err != nil {
		return fmt.Errorf("allocate sequence number: %w", err)
	}

	s.logger.Info("Pro-forma invoice converted",
		"invoice_id", inv.ID,
		"from", inv.SequenceNumber,
		"to", number)
	inv.SequenceNumber = number
	inv.DateDue = entity.DueDate(s.now(), s.cfg.PaymentPeriod)
	return nil
}

// CancelProFormaInvoice cancels a pro-forma invoice and returns its stock to
// the warehouse. Cancellation is gated on the pro-forma number, not on the
// status, so a paid pro-forma invoice can be canceled too.
func (s *invoiceServiceImpl) CancelProFormaInvoice(ctx context.Context, id int64) (*entity.Invoice, error) {
	return s.transition(ctx, id, "cancel", func(ctx context.Context, inv *entity.Invoice) error {
		wasPaid := inv.Status == entity.InvoiceStatusPaid
		if err := workflow.Apply(inv, workflow.TriggerCancel); err != nil {
			return err
		}
		if wasPaid {
			s.logger.Info("Canceling a paid pro-forma invoice", "invoice_id", inv.ID, "sequence_number", inv.SequenceNumber)
		}

		products, err := s.productRepo.GetByInvoiceID(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("get products: %w", err)
		}
		if len(products) == 0 {
			return nil
		}

		lines := make([]port.StockLine, 0, len(products))
		for _, p := range products {
			lines = append(lines, port.StockLine{SKU: p.SKU, Name: p.Name, Quantity: -p.Quantity})
		}
		if err := s.stock.AdjustStock(ctx, inv.SequenceNumber, lines); err != nil {
			return fmt.Errorf("refund stock: %w", err)
		}
		return nil
	})
}

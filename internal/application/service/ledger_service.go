package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/shopspring/decimal"
)

// PaymentResult is the outcome of ApplyPayment
type PaymentResult struct {
	Payment    *entity.InvoicePayment `json:"payment"`
	Invoice    *entity.Invoice        `json:"invoice"`
	Totals     *entity.Totals         `json:"totals"`
	MarkedPaid bool                   `json:"marked_paid"`
}

// InvoicePayer marks an invoice paid, converting pro-forma invoices first
type InvoicePayer interface {
	SetPayed(ctx context.Context, invoiceID int64) (*entity.Invoice, error)
}

// LedgerService records payments and computes invoice totals
type LedgerService interface {
	// AddPayment appends a payment without touching the invoice status
	AddPayment(ctx context.Context, invoiceID int64, platform string, amount decimal.Decimal) (*entity.InvoicePayment, error)
	// ApplyPayment appends a payment and marks the invoice paid once the
	// payments cover the total. Canceled invoices are never marked paid.
	ApplyPayment(ctx context.Context, invoiceID int64, platform string, amount decimal.Decimal) (*PaymentResult, error)
	Totals(ctx context.Context, invoiceID int64) (*entity.Totals, error)
	Payments(ctx context.Context, invoiceID int64) ([]*entity.InvoicePayment, error)
	Platforms(ctx context.Context) ([]*entity.PaymentPlatform, error)
}

type ledgerServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	productRepo  port.ProductRepository
	paymentRepo  port.PaymentRepository
	platformRepo port.PlatformRepository
	payer        InvoicePayer
	txManager    port.TransactionManager
	now          func() time.Time
	logger       Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	invoiceRepo port.InvoiceRepository,
	productRepo port.ProductRepository,
	paymentRepo port.PaymentRepository,
	platformRepo port.PlatformRepository,
	payer InvoicePayer,
	txManager port.TransactionManager,
	now func() time.Time,
	logger Logger,
) LedgerService {
	if now == nil {
		now = time.Now
	}
	return &ledgerServiceImpl{
		invoiceRepo:  invoiceRepo,
		productRepo:  productRepo,
		paymentRepo:  paymentRepo,
		platformRepo: platformRepo,
		payer:        payer,
		txManager:    txManager,
		now:          now,
		logger:       logger,
	}
}

// AddPayment rounds amount half-up to cents and appends it to the ledger
func (s *ledgerServiceImpl) AddPayment(ctx context.Context, invoiceID int64, platform string, amount decimal.Decimal) (*entity.InvoicePayment, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, entity.ErrInvoiceNotFound
	}

	p, err := s.platformRepo.GetByName(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("get payment platform: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrPlatformNotFound, platform)
	}

	payment := &entity.InvoicePayment{
		InvoiceID:  invoiceID,
		PlatformID: p.ID,
		Amount:     money.Round(amount),
		CreatedAt:  s.now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Info("Payment added",
		"invoice_id", invoiceID,
		"platform", platform,
		"amount", money.Format(payment.Amount))
	return payment, nil
}

// ApplyPayment adds the payment and runs paid detection in one transaction
func (s *ledgerServiceImpl) ApplyPayment(ctx context.Context, invoiceID int64, platform string, amount decimal.Decimal) (*PaymentResult, error) {
	result := &PaymentResult{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		payment, err := s.AddPayment(txCtx, invoiceID, platform, amount)
		if err != nil {
			return err
		}
		result.Payment = payment

		invoice, err := s.invoiceRepo.GetByID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("reload invoice: %w", err)
		}
		result.Invoice = invoice

		totals, err := s.Totals(txCtx, invoiceID)
		if err != nil {
			return err
		}
		result.Totals = totals

		switch {
		case !totals.IsSettled():
		case invoice.IsCanceled():
			s.logger.Info("Payment settles a canceled invoice, status left unchanged",
				"invoice_id", invoiceID, "sequence_number", invoice.SequenceNumber)
		case invoice.Status == entity.InvoiceStatusPaid:
		default:
			paid, err := s.payer.SetPayed(txCtx, invoiceID)
			if err != nil {
				return fmt.Errorf("mark invoice paid: %w", err)
			}
			result.Invoice = paid
			result.MarkedPaid = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Totals aggregates products and payments of an invoice
func (s *ledgerServiceImpl) Totals(ctx context.Context, invoiceID int64) (*entity.Totals, error) {
	products, err := s.productRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	payments, err := s.paymentRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}
	return ComputeTotals(products, payments), nil
}

func (s *ledgerServiceImpl) Payments(ctx context.Context, invoiceID int64) ([]*entity.InvoicePayment, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, entity.ErrInvoiceNotFound
	}
	return s.paymentRepo.GetByInvoiceID(ctx, invoiceID)
}

func (s *ledgerServiceImpl) Platforms(ctx context.Context) ([]*entity.PaymentPlatform, error) {
	return s.platformRepo.List(ctx)
}

// ComputeTotals groups products per VAT percentage and sums the payments.
// Every reported amount is rounded to cents; sums are taken unrounded.
func ComputeTotals(products []*entity.InvoiceProduct, payments []*entity.InvoicePayment) *entity.Totals {
	type bracket struct {
		taxable decimal.Decimal
		vat     decimal.Decimal
	}
	brackets := make(map[int]*bracket)

	withoutVAT := decimal.Zero
	vat := decimal.Zero
	for _, p := range products {
		b, ok := brackets[p.VATPercentage]
		if !ok {
			b = &bracket{taxable: decimal.Zero, vat: decimal.Zero}
			brackets[p.VATPercentage] = b
		}
		b.taxable = b.taxable.Add(p.Subtotal())
		b.vat = b.vat.Add(p.VATAmount())
		withoutVAT = withoutVAT.Add(p.Subtotal())
		vat = vat.Add(p.VATAmount())
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	total := money.Round(withoutVAT.Add(vat))
	totals := &entity.Totals{
		TotalPriceWithoutVAT: money.Round(withoutVAT),
		TotalPrice:           total,
		TotalVAT:             money.Round(vat),
		TotalPaid:            money.Round(paid),
		Remaining:            total.Sub(money.Round(paid)),
		VAT:                  make([]entity.VATLine, 0, len(brackets)),
	}

	for pct, b := range brackets {
		totals.VAT = append(totals.VAT, entity.VATLine{
			Amount:  money.Round(b.vat),
			Taxable: money.Round(b.taxable),
			Type:    pct,
		})
	}
	sort.Slice(totals.VAT, func(i, j int) bool { return totals.VAT[i].Type < totals.VAT[j].Type })

	return totals
}

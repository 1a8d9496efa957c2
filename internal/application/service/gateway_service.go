package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayConfig holds the public URLs handed to the payment gateway
type GatewayConfig struct {
	// PublicBaseURL is where the gateway reaches our webhook and return routes
	PublicBaseURL string
	// RedirectURL is where customers land after checkout
	RedirectURL string
	Currency    string
}

// CreateTransactionRequest is the input of CreateTransaction. A zero amount
// charges the remaining balance of the invoice.
type CreateTransactionRequest struct {
	InvoiceID   int64           `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Issuer      string          `json:"issuer"`
}

// CheckoutResult is returned after a gateway payment was created
type CheckoutResult struct {
	Transaction *entity.GatewayTransaction `json:"transaction"`
	CheckoutURL string                     `json:"checkout_url"`
}

// NotificationResult is the outcome of a status update from the gateway
type NotificationResult struct {
	Transaction *entity.GatewayTransaction
	Changed     bool
	// Confirmed is set when the transaction just became paid; the caller
	// books the payment.
	Confirmed bool
	// PaidAmount is the amount the gateway reports
	PaidAmount     decimal.Decimal
	AmountMismatch bool
}

// SweepResult counts what a sweep did
type SweepResult struct {
	Refreshed int `json:"refreshed"`
	Abandoned int `json:"abandoned"`
	Failed    int `json:"failed"`
}

// GatewayService wraps the payment gateway and books confirmed payments
type GatewayService interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CheckoutResult, error)
	// Notification fetches the payment and records its status. It returns
	// ErrPaymentFailed or ErrPaymentCanceled after recording those states.
	Notification(ctx context.Context, externalID string) (*NotificationResult, error)
	// HandleWebhook processes a gateway callback. It never fails; everything
	// that goes wrong is logged.
	HandleWebhook(ctx context.Context, transactionID int64, secret, externalID string)
	Redirect(ctx context.Context, transactionID int64, secret string) (string, error)
	ListIssuers(ctx context.Context) ([]port.Issuer, error)
	// Sweep refreshes open transactions created before the cutoff
	Sweep(ctx context.Context, before time.Time) (*SweepResult, error)
}

type gatewayServiceImpl struct {
	gateway   port.PaymentGateway
	txRepo    port.GatewayTransactionRepository
	invoices  port.InvoiceRepository
	ledger    LedgerService
	notifier  port.OperatorNotifier
	txManager port.TransactionManager
	cfg       GatewayConfig
	now       func() time.Time
	logger    Logger
}

// NewGatewayService creates a new GatewayService. gateway may be nil when no
// credentials are configured; every gateway call then fails with
// ErrGatewayNotConfigured.
func NewGatewayService(
	gateway port.PaymentGateway,
	txRepo port.GatewayTransactionRepository,
	invoices port.InvoiceRepository,
	ledger LedgerService,
	notifier port.OperatorNotifier,
	txManager port.TransactionManager,
	cfg GatewayConfig,
	now func() time.Time,
	logger Logger,
) GatewayService {
	if now == nil {
		now = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = money.DefaultCurrency
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &gatewayServiceImpl{
		gateway:   gateway,
		txRepo:    txRepo,
		invoices:  invoices,
		ledger:    ledger,
		notifier:  notifier,
		txManager: txManager,
		cfg:       cfg,
		now:       now,
		logger:    logger,
	}
}

// CreateTransaction stores an open transaction and opens the gateway
// checkout. When the gateway refuses, the local transaction is marked failed
// so no open row without an external id is left behind.
func (s *gatewayServiceImpl) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CheckoutResult, error) {
	if s.gateway == nil {
		return nil, entity.ErrGatewayNotConfigured
	}

	invoice, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: id %d", entity.ErrInvoiceNotFound, req.InvoiceID)
	}
	if invoice.IsCanceled() {
		return nil, entity.ErrInvoiceCanceled
	}

	amount := money.Round(req.Amount)
	if amount.IsZero() {
		totals, err := s.ledger.Totals(ctx, invoice.ID)
		if err != nil {
			return nil, err
		}
		amount = totals.Remaining
	}
	if !amount.IsPositive() {
		return nil, entity.NewValidationError("amount", "must be positive")
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Invoice %s", invoice.SequenceNumber)
	}
	reference := req.Reference
	if reference == "" {
		reference = invoice.SequenceNumber
	}

	now := s.now()
	tx := &entity.GatewayTransaction{
		InvoiceID: invoice.ID,
		Amount:    amount,
		Status:    entity.GatewayStatusOpen,
		Secret:    uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create gateway transaction: %w", err)
	}

	payment, err := s.gateway.CreatePayment(ctx, port.GatewayPaymentRequest{
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Description: description,
		Reference:   reference,
		Issuer:      req.Issuer,
		RedirectURL: s.callbackURL("checkout/return", tx),
		WebhookURL:  s.callbackURL("webhook/mollie", tx),
	})
	if err != nil {
		s.logger.Error("Gateway refused payment", "error", err, "transaction_id", tx.ID, "invoice_id", invoice.ID)
		tx.Status = entity.GatewayStatusFailed
		tx.UpdatedAt = s.now()
		if uerr := s.txRepo.Update(ctx, tx); uerr != nil {
			s.logger.Error("Failed to mark gateway transaction failed", "error", uerr, "transaction_id", tx.ID)
		}
		if errors.Is(err, entity.ErrExternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrGatewayUnavailable, err)
	}

	tx.Description = payment.ID
	tx.UpdatedAt = s.now()
	if err := s.txRepo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("store gateway payment id: %w", err)
	}

	s.logger.Info("Gateway transaction created",
		"transaction_id", tx.ID,
		"invoice_id", invoice.ID,
		"external_id", payment.ID,
		"amount", money.Format(amount))
	return &CheckoutResult{Transaction: tx, CheckoutURL: payment.CheckoutURL}, nil
}

func (s *gatewayServiceImpl) callbackURL(route string, tx *entity.GatewayTransaction) string {
	return fmt.Sprintf("%s/%s/%d/%s", s.cfg.PublicBaseURL, route, tx.ID, url.PathEscape(tx.Secret))
}

func (s *gatewayServiceImpl) fetch(ctx context.Context, externalID string) (*port.GatewayPayment, error) {
	if s.gateway == nil {
		return nil, entity.ErrGatewayNotConfigured
	}
	payment, err := s.gateway.GetPayment(ctx, externalID)
	if err != nil {
		if errors.Is(err, entity.ErrExternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrGatewayUnavailable, err)
	}
	return payment, nil
}

func (s *gatewayServiceImpl) Notification(ctx context.Context, externalID string) (*NotificationResult, error) {
	payment, err := s.fetch(ctx, externalID)
	if err != nil {
		return nil, err
	}

	var result *NotificationResult
	var outcome error
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.record(txCtx, externalID, payment)
		// the recorded state must survive a failed or canceled outcome
		if errors.Is(err, entity.ErrGatewayOutcome) {
			outcome = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, outcome
}

// record moves the local transaction to the gateway's status. The returned
// result is valid alongside ErrPaymentFailed and ErrPaymentCanceled.
func (s *gatewayServiceImpl) record(ctx context.Context, externalID string, payment *port.GatewayPayment) (*NotificationResult, error) {
	tx, err := s.txRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get gateway transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrTransactionNotFound, externalID)
	}

	result := &NotificationResult{Transaction: tx, PaidAmount: payment.Amount}

	outcome := tx.Transition(payment.Status)
	switch {
	case errors.Is(outcome, entity.ErrSameState):
		return result, nil
	case outcome != nil && !errors.Is(outcome, entity.ErrGatewayOutcome):
		return nil, outcome
	}

	result.Changed = true
	tx.UpdatedAt = s.now()
	if err := s.txRepo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("update gateway transaction: %w", err)
	}
	s.logger.Info("Gateway transaction updated",
		"transaction_id", tx.ID,
		"external_id", externalID,
		"status", tx.Status)

	if outcome != nil {
		return result, outcome
	}

	if tx.Status == entity.GatewayStatusPaid {
		result.Confirmed = true
		if !payment.Amount.Equal(tx.Amount) {
			result.AmountMismatch = true
			s.logger.Error("Gateway paid amount differs from requested amount",
				"critical", true,
				"transaction_id", tx.ID,
				"invoice_id", tx.InvoiceID,
				"expected", money.Format(tx.Amount),
				"paid", money.Format(payment.Amount))
			s.notify(ctx, "Gateway amount mismatch",
				fmt.Sprintf("Transaction %d for invoice %d: expected %s, paid %s",
					tx.ID, tx.InvoiceID, money.Format(tx.Amount), money.Format(payment.Amount)))
		}
	}
	return result, nil
}

func (s *gatewayServiceImpl) notify(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOperator(ctx, subject, body); err != nil {
		s.logger.Error("Failed to notify operator", "error", err)
	}
}

// settle records the status and books a confirmed payment in one database
// transaction. The gateway is queried before the transaction starts.
func (s *gatewayServiceImpl) settle(ctx context.Context, externalID string) (*NotificationResult, error) {
	payment, err := s.fetch(ctx, externalID)
	if err != nil {
		return nil, err
	}

	var result *NotificationResult
	var outcome error
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.record(txCtx, externalID, payment)
		if errors.Is(err, entity.ErrGatewayOutcome) {
			outcome = err
			return nil
		}
		if err != nil {
			return err
		}
		if !result.Confirmed {
			return nil
		}

		booked, err := s.ledger.ApplyPayment(txCtx, result.Transaction.InvoiceID, entity.PlatformMollie, result.PaidAmount)
		if err != nil {
			return fmt.Errorf("book gateway payment: %w", err)
		}
		s.logger.Info("Gateway payment booked",
			"transaction_id", result.Transaction.ID,
			"invoice_id", booked.Invoice.ID,
			"marked_paid", booked.MarkedPaid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, outcome
}

func (s *gatewayServiceImpl) HandleWebhook(ctx context.Context, transactionID int64, secret, externalID string) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		s.logger.Error("Webhook lookup failed", "error", err, "transaction_id", transactionID)
		return
	}
	if tx == nil || !secretsEqual(tx.Secret, secret) {
		s.logger.Error("Webhook for unknown transaction or bad secret", "transaction_id", transactionID)
		return
	}
	if externalID == "" {
		externalID = tx.ExternalID()
	}
	if externalID != tx.ExternalID() {
		s.logger.Error("Webhook payment id does not belong to transaction",
			"transaction_id", transactionID,
			"external_id", externalID)
		return
	}

	_, err = s.settle(ctx, externalID)
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrGatewayOutcome):
		s.logger.Info("Gateway payment not completed", "transaction_id", transactionID, "outcome", err.Error())
	default:
		s.logger.Error("Webhook processing failed", "error", err, "transaction_id", transactionID)
	}
}

func secretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Redirect returns the customer landing URL for a finished checkout
func (s *gatewayServiceImpl) Redirect(ctx context.Context, transactionID int64, secret string) (string, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return "", fmt.Errorf("get gateway transaction: %w", err)
	}
	if tx == nil || !secretsEqual(tx.Secret, secret) {
		return "", entity.ErrTransactionNotFound
	}

	target, err := url.Parse(s.cfg.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%w: redirect url: %v", entity.ErrConfiguration, err)
	}
	q := target.Query()
	q.Set("transaction", fmt.Sprintf("%d", tx.ID))
	q.Set("status", tx.Status.String())
	if invoice, err := s.invoices.GetByID(ctx, tx.InvoiceID); err == nil && invoice != nil {
		q.Set("invoice", invoice.SequenceNumber)
	}
	target.RawQuery = q.Encode()
	return target.String(), nil
}

func (s *gatewayServiceImpl) ListIssuers(ctx context.Context) ([]port.Issuer, error) {
	if s.gateway == nil {
		return nil, entity.ErrGatewayNotConfigured
	}
	return s.gateway.ListIssuers(ctx)
}

// Sweep refreshes stale open transactions through the webhook path. Open
// transactions that never got a gateway id are marked failed.
func (s *gatewayServiceImpl) Sweep(ctx context.Context, before time.Time) (*SweepResult, error) {
	open, err := s.txRepo.ListOpenBefore(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("list open gateway transactions: %w", err)
	}

	result := &SweepResult{}
	for _, tx := range open {
		if tx.ExternalID() == "" {
			tx.Status = entity.GatewayStatusFailed
			tx.UpdatedAt = s.now()
			if err := s.txRepo.Update(ctx, tx); err != nil {
				s.logger.Error("Failed to abandon gateway transaction", "error", err, "transaction_id", tx.ID)
				result.Failed++
				continue
			}
			result.Abandoned++
			continue
		}

		if _, err := s.settle(ctx, tx.ExternalID()); err != nil && !errors.Is(err, entity.ErrGatewayOutcome) {
			s.logger.Error("Failed to refresh gateway transaction", "error", err, "transaction_id", tx.ID)
			result.Failed++
			continue
		}
		result.Refreshed++
	}

	if len(open) > 0 {
		s.logger.Info("Gateway sweep finished",
			"open", len(open),
			"refreshed", result.Refreshed,
			"abandoned", result.Abandoned,
			"failed", result.Failed)
	}
	return result, nil
}

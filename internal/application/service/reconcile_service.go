package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/garyjia/invoicing/internal/mt940"
)

// Reasons recorded for candidates that could not be applied
const (
	ReasonInvoiceNotFound = "invoice not found"
	ReasonInvalidAmount   = "invalid amount"
	ReasonApplyFailed     = "apply failed"
	ReasonAborted         = "aborted"
	ReasonNotAttempted    = "not attempted"
)

// StatementFile is one uploaded bank statement
type StatementFile struct {
	Name    string
	Content []byte
}

// AppliedCandidate is a candidate that produced a ledger entry
type AppliedCandidate struct {
	Candidate      mt940.Candidate `json:"candidate"`
	InvoiceID      int64           `json:"invoice_id"`
	SequenceNumber string          `json:"sequence_number"`
	PaymentID      int64           `json:"payment_id"`
	MarkedPaid     bool            `json:"marked_paid"`
}

// FailedCandidate is a candidate left for operator review
type FailedCandidate struct {
	Candidate mt940.Candidate `json:"candidate"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error,omitempty"`
}

// ReconcileResult collects the outcome of one batch
type ReconcileResult struct {
	Applied []AppliedCandidate `json:"applied"`
	Failed  []FailedCandidate  `json:"failed"`
}

// ReconcileService turns bank statements into ledger entries.
//
// Applying the same candidate twice books the payment twice. Operators
// review the applied list before uploading overlapping statements again.
type ReconcileService interface {
	Parse(ctx context.Context, files []StatementFile) ([]mt940.Candidate, error)
	// Apply books each candidate in its own transaction. When an
	// infrastructure error stops the batch, the partial result is returned
	// together with the error.
	Apply(ctx context.Context, candidates []mt940.Candidate) (*ReconcileResult, error)
	// Reconcile archives the files, parses them and applies the candidates
	Reconcile(ctx context.Context, files []StatementFile) (*ReconcileResult, error)
}

type reconcileServiceImpl struct {
	parser   *mt940.Parser
	invoices port.InvoiceRepository
	ledger   LedgerService
	archive  port.StatementArchive
	notifier port.OperatorNotifier
	platform string
	now      func() time.Time
	logger   Logger
}

// NewReconcileService creates a new ReconcileService. Payments are booked on
// platform; archive may be nil.
func NewReconcileService(
	parser *mt940.Parser,
	invoices port.InvoiceRepository,
	ledger LedgerService,
	archive port.StatementArchive,
	notifier port.OperatorNotifier,
	platform string,
	now func() time.Time,
	logger Logger,
) ReconcileService {
	if now == nil {
		now = time.Now
	}
	if platform == "" {
		platform = entity.PlatformIDEAL
	}
	return &reconcileServiceImpl{
		parser:   parser,
		invoices: invoices,
		ledger:   ledger,
		archive:  archive,
		notifier: notifier,
		platform: platform,
		now:      now,
		logger:   logger,
	}
}

func (s *reconcileServiceImpl) Parse(ctx context.Context, files []StatementFile) ([]mt940.Candidate, error) {
	readers := make([]mt940.File, 0, len(files))
	for _, f := range files {
		readers = append(readers, mt940.File{Name: f.Name, Reader: bytes.NewReader(f.Content)})
	}

	candidates, err := s.parser.Candidates(readers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	return candidates, nil
}

// Apply books every candidate independently. Lookup misses and bad amounts
// end up in Failed. An infrastructure error stops the batch: the payments
// already booked stay in Applied, the candidate that hit the error is
// recorded as aborted and the rest as not attempted.
func (s *reconcileServiceImpl) Apply(ctx context.Context, candidates []mt940.Candidate) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Applied: []AppliedCandidate{},
		Failed:  []FailedCandidate{},
	}

	for i, c := range candidates {
		failed, err := s.applyOne(ctx, c, result)
		if err != nil {
			result.Failed = append(result.Failed, FailedCandidate{Candidate: c, Reason: ReasonAborted})
			for _, rest := range candidates[i+1:] {
				result.Failed = append(result.Failed, FailedCandidate{Candidate: rest, Reason: ReasonNotAttempted})
			}
			s.logger.Error("Reconciliation aborted",
				"error", err,
				"invoice", c.Invoice,
				"applied", len(result.Applied),
				"not_attempted", len(candidates)-i-1)
			return result, err
		}
		if failed != nil {
			result.Failed = append(result.Failed, *failed)
		}
	}

	s.logger.Info("Reconciliation applied",
		"candidates", len(candidates),
		"applied", len(result.Applied),
		"failed", len(result.Failed))
	return result, nil
}

// applyOne books c. A candidate that cannot be booked is returned as failed;
// a non-nil error means the batch must stop.
func (s *reconcileServiceImpl) applyOne(ctx context.Context, c mt940.Candidate, result *ReconcileResult) (*FailedCandidate, error) {
	invoice, err := s.invoices.GetBySequenceNumber(ctx, c.Invoice)
	if err != nil {
		return nil, fmt.Errorf("look up invoice %s: %w", c.Invoice, err)
	}
	if invoice == nil {
		return &FailedCandidate{Candidate: c, Reason: ReasonInvoiceNotFound}, nil
	}

	amount, err := money.Parse(c.Amount)
	if err != nil {
		return &FailedCandidate{Candidate: c, Reason: ReasonInvalidAmount, Error: err.Error()}, nil
	}

	applied, err := s.ledger.ApplyPayment(ctx, invoice.ID, s.platform, amount)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) && !errors.Is(err, entity.ErrStateConflict) {
			return nil, fmt.Errorf("apply payment for %s: %w", c.Invoice, err)
		}
		return &FailedCandidate{Candidate: c, Reason: ReasonApplyFailed, Error: err.Error()}, nil
	}

	result.Applied = append(result.Applied, AppliedCandidate{
		Candidate:      c,
		InvoiceID:      invoice.ID,
		SequenceNumber: applied.Invoice.SequenceNumber,
		PaymentID:      applied.Payment.ID,
		MarkedPaid:     applied.MarkedPaid,
	})
	return nil, nil
}

func (s *reconcileServiceImpl) Reconcile(ctx context.Context, files []StatementFile) (*ReconcileResult, error) {
	s.store(ctx, files)

	candidates, err := s.Parse(ctx, files)
	if err != nil {
		return nil, err
	}

	result, err := s.Apply(ctx, candidates)
	if err != nil {
		s.notify(ctx, "Bank reconciliation aborted", fmt.Sprintf(
			"%d of %d statement references were applied before the batch stopped: %v",
			len(result.Applied), len(candidates), err))
		return result, err
	}

	if len(result.Failed) > 0 {
		s.notify(ctx, "Bank reconciliation needs review", fmt.Sprintf(
			"%d of %d statement references could not be applied", len(result.Failed), len(candidates)))
	}
	return result, nil
}

func (s *reconcileServiceImpl) notify(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOperator(ctx, subject, body); err != nil {
		s.logger.Error("Failed to notify operator", "error", err)
	}
}

// store keeps a copy of each upload for review; failures only get logged
func (s *reconcileServiceImpl) store(ctx context.Context, files []StatementFile) {
	if s.archive == nil {
		return
	}
	day := s.now().Format("2006-01-02")
	for _, f := range files {
		name := path.Join(day, fmt.Sprintf("%d-%s", s.now().UnixNano(), path.Base(f.Name)))
		if err := s.archive.Save(ctx, name, f.Content); err != nil {
			s.logger.Error("Failed to archive statement", "error", err, "file", f.Name)
		}
	}
}

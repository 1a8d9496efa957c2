package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/sequence"
)

// SequenceService allocates invoice sequence numbers. Both operations read
// and write inside one transaction; the storage layer must hold the write
// lock for its duration.
type SequenceService interface {
	NextRealNumber(ctx context.Context, prefix string) (string, error)
	NextProFormaNumber(ctx context.Context, prefix string) (string, error)
}

type sequenceServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	counterRepo port.CounterRepository
	txManager   port.TransactionManager
	now         func() time.Time
	logger      Logger
}

// NewSequenceService creates a new SequenceService
func NewSequenceService(
	invoiceRepo port.InvoiceRepository,
	counterRepo port.CounterRepository,
	txManager port.TransactionManager,
	now func() time.Time,
	logger Logger,
) SequenceService {
	if now == nil {
		now = time.Now
	}
	return &sequenceServiceImpl{
		invoiceRepo: invoiceRepo,
		counterRepo: counterRepo,
		txManager:   txManager,
		now:         now,
		logger:      logger,
	}
}

// NextRealNumber continues the highest real number of the current year, or
// starts the year at 001.
func (s *sequenceServiceImpl) NextRealNumber(ctx context.Context, prefix string) (string, error) {
	if err := sequence.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	year := s.now().Year()

	var next string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		numbers, err := s.invoiceRepo.SequenceNumbersForYear(txCtx, year)
		if err != nil {
			return fmt.Errorf("scan sequence numbers: %w", err)
		}

		if highest, ok := sequence.HighestReal(numbers, year); ok {
			next = highest.Next().String()
		} else {
			next = sequence.New(prefix, false, year).String()
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Allocated invoice number", "sequence_number", next)
	return next, nil
}

// NextProFormaNumber moves the singleton counter forward and returns its new
// value. The counter is created on first use. A counter left over from an
// earlier year restarts at 001 for the current year.
func (s *sequenceServiceImpl) NextProFormaNumber(ctx context.Context, prefix string) (string, error) {
	if err := sequence.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	now := s.now()
	year := now.Year()

	var next string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		counter, err := s.counterRepo.Get(txCtx)
		if err != nil {
			return fmt.Errorf("load pro-forma counter: %w", err)
		}

		if counter == nil {
			next = sequence.New(prefix, true, year).String()
			return s.counterRepo.Create(txCtx, &entity.ProFormaCounter{Number: next, UpdatedAt: now})
		}

		current, err := sequence.Parse(counter.Number)
		if err != nil {
			return fmt.Errorf("%w: pro-forma counter holds %q", entity.ErrConfiguration, counter.Number)
		}
		if current.Year != year {
			current = sequence.New(current.Prefix, true, year)
		} else {
			current = current.Next()
		}
		current.ProForma = true

		next = current.String()
		counter.Number = next
		counter.UpdatedAt = now
		return s.counterRepo.Update(txCtx, counter)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Allocated pro-forma number", "sequence_number", next)
	return next, nil
}

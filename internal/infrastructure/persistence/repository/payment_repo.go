package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PaymentRepository implements port.PaymentRepository
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment ledger repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a ledger entry
func (r *PaymentRepository) Create(ctx context.Context, payment *entity.InvoicePayment) error {
	query := `
		INSERT INTO invoice_payments (invoice_id, platform_id, amount, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		payment.InvoiceID,
		payment.PlatformID,
		payment.Amount.String(),
		payment.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment",
			zap.Int64("invoice_id", payment.InvoiceID),
			zap.String("amount", payment.Amount.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	payment.ID = id
	return nil
}

// GetByInvoiceID returns the ledger entries of an invoice, oldest first
func (r *PaymentRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoicePayment, error) {
	query := `
		SELECT id, invoice_id, platform_id, amount, created_at
		FROM invoice_payments
		WHERE invoice_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get payments", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []*entity.InvoicePayment
	for rows.Next() {
		var p entity.InvoicePayment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.PlatformID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// PlatformRepository implements port.PlatformRepository
type PlatformRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPlatformRepository creates a new payment platform repository
func NewPlatformRepository(db *sql.DB, logger *zap.Logger) port.PlatformRepository {
	return &PlatformRepository{
		db:     db,
		logger: logger,
	}
}

// GetByName looks up a platform by name
func (r *PlatformRepository) GetByName(ctx context.Context, name string) (*entity.PaymentPlatform, error) {
	query := `SELECT id, name FROM payment_platforms WHERE name = ?`

	var p entity.PaymentPlatform
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, name).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment platform", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment platform: %w", err)
	}
	return &p, nil
}

// List returns every platform
func (r *PlatformRepository) List(ctx context.Context) ([]*entity.PaymentPlatform, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, `SELECT id, name FROM payment_platforms ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list payment platforms", zap.Error(err))
		return nil, fmt.Errorf("failed to list payment platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*entity.PaymentPlatform
	for rows.Next() {
		var p entity.PaymentPlatform
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan payment platform: %w", err)
		}
		platforms = append(platforms, &p)
	}
	return platforms, rows.Err()
}

var (
	_ port.PaymentRepository  = (*PaymentRepository)(nil)
	_ port.PlatformRepository = (*PlatformRepository)(nil)
)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const gatewayColumns = `id, invoice_id, amount, status, description, secret, created_at, updated_at`

// GatewayTransactionRepository implements port.GatewayTransactionRepository
type GatewayTransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGatewayTransactionRepository creates a new gateway transaction repository
func NewGatewayTransactionRepository(db *sql.DB, logger *zap.Logger) port.GatewayTransactionRepository {
	return &GatewayTransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a gateway transaction
func (r *GatewayTransactionRepository) Create(ctx context.Context, tx *entity.GatewayTransaction) error {
	query := `
		INSERT INTO gateway_transactions (
			invoice_id, amount, status, description, secret, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		tx.InvoiceID,
		tx.Amount.String(),
		tx.Status,
		tx.Description,
		tx.Secret,
		tx.CreatedAt.UTC(),
		tx.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create gateway transaction",
			zap.Int64("invoice_id", tx.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create gateway transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	tx.ID = id
	return nil
}

// GetByID retrieves a gateway transaction by local id
func (r *GatewayTransactionRepository) GetByID(ctx context.Context, id int64) (*entity.GatewayTransaction, error) {
	query := `SELECT ` + gatewayColumns + ` FROM gateway_transactions WHERE id = ?`

	tx, err := scanGatewayTransaction(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get gateway transaction", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get gateway transaction: %w", err)
	}
	return tx, nil
}

// GetByExternalID retrieves a gateway transaction by the gateway's payment id
func (r *GatewayTransactionRepository) GetByExternalID(ctx context.Context, externalID string) (*entity.GatewayTransaction, error) {
	if externalID == "" {
		return nil, nil
	}
	query := `SELECT ` + gatewayColumns + ` FROM gateway_transactions WHERE description = ?`

	tx, err := scanGatewayTransaction(r.getExecutor(ctx).QueryRowContext(ctx, query, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get gateway transaction by external id",
			zap.String("external_id", externalID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get gateway transaction: %w", err)
	}
	return tx, nil
}

// Update persists status and description
func (r *GatewayTransactionRepository) Update(ctx context.Context, tx *entity.GatewayTransaction) error {
	query := `
		UPDATE gateway_transactions
		SET status = ?, description = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, tx.Status, tx.Description, tx.UpdatedAt.UTC(), tx.ID)
	if err != nil {
		r.logger.Error("Failed to update gateway transaction", zap.Int64("id", tx.ID), zap.Error(err))
		return fmt.Errorf("failed to update gateway transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return entity.ErrTransactionNotFound
	}
	return nil
}

// ListOpenBefore returns open transactions created before the given time.
// Timestamps are stored in UTC so the comparison is lexical-safe.
func (r *GatewayTransactionRepository) ListOpenBefore(ctx context.Context, before time.Time) ([]*entity.GatewayTransaction, error) {
	query := `SELECT ` + gatewayColumns + `
		FROM gateway_transactions
		WHERE status = ? AND created_at < ?
		ORDER BY id`

	return r.list(ctx, query, entity.GatewayStatusOpen, before.UTC())
}

// GetByInvoiceID returns the gateway transactions of an invoice
func (r *GatewayTransactionRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.GatewayTransaction, error) {
	query := `SELECT ` + gatewayColumns + ` FROM gateway_transactions WHERE invoice_id = ? ORDER BY id`
	return r.list(ctx, query, invoiceID)
}

func (r *GatewayTransactionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.GatewayTransaction, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list gateway transactions", zap.Error(err))
		return nil, fmt.Errorf("failed to list gateway transactions: %w", err)
	}
	defer rows.Close()

	var txs []*entity.GatewayTransaction
	for rows.Next() {
		tx, err := scanGatewayTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gateway transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *GatewayTransactionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

func scanGatewayTransaction(row rowScanner) (*entity.GatewayTransaction, error) {
	var tx entity.GatewayTransaction
	if err := row.Scan(
		&tx.ID,
		&tx.InvoiceID,
		&tx.Amount,
		&tx.Status,
		&tx.Description,
		&tx.Secret,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tx, nil
}

var _ port.GatewayTransactionRepository = (*GatewayTransactionRepository)(nil)

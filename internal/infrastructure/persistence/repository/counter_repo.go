package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/infrastructure/persistence/sqlite"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// counterRowID is the only id the proforma_counter table accepts
const counterRowID = 1

// CounterRepository implements port.CounterRepository
type CounterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCounterRepository creates a new pro-forma counter repository
func NewCounterRepository(db *sql.DB, logger *zap.Logger) port.CounterRepository {
	return &CounterRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the counter, nil if it was never created
func (r *CounterRepository) Get(ctx context.Context) (*entity.ProFormaCounter, error) {
	query := `SELECT number, updated_at FROM proforma_counter WHERE id = ?`

	var counter entity.ProFormaCounter
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, counterRowID).Scan(&counter.Number, &counter.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pro-forma counter", zap.Error(err))
		return nil, fmt.Errorf("failed to get pro-forma counter: %w", err)
	}
	return &counter, nil
}

// Create inserts the singleton row
func (r *CounterRepository) Create(ctx context.Context, counter *entity.ProFormaCounter) error {
	query := `INSERT INTO proforma_counter (id, number, updated_at) VALUES (?, ?, ?)`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, counterRowID, counter.Number, counter.UpdatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			r.logger.Error("Pro-forma counter already exists", zap.String("number", counter.Number))
			return entity.ErrDuplicateCounter
		}
		r.logger.Error("Failed to create pro-forma counter", zap.Error(err))
		return fmt.Errorf("failed to create pro-forma counter: %w", err)
	}
	return nil
}

// Update stores the last issued number
func (r *CounterRepository) Update(ctx context.Context, counter *entity.ProFormaCounter) error {
	query := `UPDATE proforma_counter SET number = ?, updated_at = ? WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, counter.Number, counter.UpdatedAt, counterRowID)
	if err != nil {
		r.logger.Error("Failed to update pro-forma counter", zap.Error(err))
		return fmt.Errorf("failed to update pro-forma counter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: pro-forma counter missing", entity.ErrConfiguration)
	}
	return nil
}

func (r *CounterRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.CounterRepository = (*CounterRepository)(nil)

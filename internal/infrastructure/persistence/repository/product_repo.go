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

// ProductRepository implements port.ProductRepository
type ProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new invoice product repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) port.ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts invoice lines
func (r *ProductRepository) CreateBatch(ctx context.Context, products []*entity.InvoiceProduct) error {
	query := `
		INSERT INTO invoice_products (
			invoice_id, name, sku, price, vat_percentage, quantity
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	exec := r.getExecutor(ctx)
	for _, p := range products {
		result, err := exec.ExecContext(ctx, query,
			p.InvoiceID,
			p.Name,
			p.SKU,
			p.Price.String(),
			p.VATPercentage,
			p.Quantity,
		)
		if err != nil {
			r.logger.Error("Failed to create invoice product",
				zap.Int64("invoice_id", p.InvoiceID),
				zap.String("name", p.Name),
				zap.Error(err))
			return fmt.Errorf("failed to create invoice product: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		p.ID = id
	}
	return nil
}

// GetByInvoiceID returns the lines of an invoice in insertion order
func (r *ProductRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoiceProduct, error) {
	query := `
		SELECT id, invoice_id, name, sku, price, vat_percentage, quantity
		FROM invoice_products
		WHERE invoice_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get invoice products", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice products: %w", err)
	}
	defer rows.Close()

	var products []*entity.InvoiceProduct
	for rows.Next() {
		var p entity.InvoiceProduct
		if err := rows.Scan(
			&p.ID,
			&p.InvoiceID,
			&p.Name,
			&p.SKU,
			&p.Price,
			&p.VATPercentage,
			&p.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice product: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.ProductRepository = (*ProductRepository)(nil)

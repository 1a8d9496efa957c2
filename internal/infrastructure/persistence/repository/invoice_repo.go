package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const invoiceColumns = `id, sequence_number, status, title, description, client_id,
	company_details_id, date_created, date_due`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice header
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			sequence_number, status, title, description, client_id,
			company_details_id, date_created, date_due
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		invoice.SequenceNumber,
		invoice.Status,
		invoice.Title,
		invoice.Description,
		invoice.ClientID,
		nullInt64(invoice.CompanyDetailsID),
		invoice.DateCreated,
		invoice.DateDue,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("sequence_number", invoice.SequenceNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetBySequenceNumber retrieves an invoice by its sequence number, ignoring case
func (r *InvoiceRepository) GetBySequenceNumber(ctx context.Context, sequenceNumber string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE sequence_number = ? COLLATE NOCASE`

	invoice, err := scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, sequenceNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by sequence number",
			zap.String("sequence_number", sequenceNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice by sequence number: %w", err)
	}
	return invoice, nil
}

// Update persists status, sequence number and due date
func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET status = ?, sequence_number = ?, date_due = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		invoice.Status,
		invoice.SequenceNumber,
		invoice.DateDue,
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.Int64("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return entity.ErrInvoiceNotFound
	}
	return nil
}

// List returns invoices newest first
func (r *InvoiceRepository) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	var where []string
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ClientID != 0 {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date_created DESC, id DESC LIMIT ? OFFSET ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// SequenceNumbersForYear returns every sequence number containing "<year>-"
func (r *InvoiceRepository) SequenceNumbersForYear(ctx context.Context, year int) ([]string, error) {
	query := `SELECT sequence_number FROM invoices WHERE sequence_number LIKE ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, fmt.Sprintf("%%%04d-%%", year))
	if err != nil {
		r.logger.Error("Failed to scan sequence numbers", zap.Int("year", year), zap.Error(err))
		return nil, fmt.Errorf("failed to query sequence numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan sequence number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func (r *InvoiceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var companyID sql.NullInt64

	if err := row.Scan(
		&invoice.ID,
		&invoice.SequenceNumber,
		&invoice.Status,
		&invoice.Title,
		&invoice.Description,
		&invoice.ClientID,
		&companyID,
		&invoice.DateCreated,
		&invoice.DateDue,
	); err != nil {
		return nil, err
	}

	if companyID.Valid {
		id := companyID.Int64
		invoice.CompanyDetailsID = &id
	}
	return &invoice, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)

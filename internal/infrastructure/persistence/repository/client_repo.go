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

// ClientRepository implements port.ClientRepository
type ClientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *sql.DB, logger *zap.Logger) port.ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a client
func (r *ClientRepository) Create(ctx context.Context, client *entity.Client) error {
	query := `INSERT INTO clients (client_number, name, email, created_at) VALUES (?, ?, ?, ?)`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		client.ClientNumber,
		client.Name,
		client.Email,
		client.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create client", zap.String("client_number", client.ClientNumber), zap.Error(err))
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	client.ID = id
	return nil
}

// GetByID retrieves a client by primary key
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*entity.Client, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

// GetByClientNumber retrieves a client by its business number
func (r *ClientRepository) GetByClientNumber(ctx context.Context, number string) (*entity.Client, error) {
	return r.getOne(ctx, `WHERE client_number = ?`, number)
}

func (r *ClientRepository) getOne(ctx context.Context, where string, arg interface{}) (*entity.Client, error) {
	query := `SELECT id, client_number, name, email, created_at FROM clients ` + where

	var c entity.Client
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, arg).
		Scan(&c.ID, &c.ClientNumber, &c.Name, &c.Email, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

// List returns every client ordered by client number
func (r *ClientRepository) List(ctx context.Context) ([]*entity.Client, error) {
	query := `SELECT id, client_number, name, email, created_at FROM clients ORDER BY client_number`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list clients", zap.Error(err))
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*entity.Client
	for rows.Next() {
		var c entity.Client
		if err := rows.Scan(&c.ID, &c.ClientNumber, &c.Name, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, &c)
	}
	return clients, rows.Err()
}

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company details repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new company details snapshot
func (r *CompanyRepository) Create(ctx context.Context, details *entity.CompanyDetails) error {
	query := `
		INSERT INTO company_details (name, prefix, iban, vat_number, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		details.Name,
		details.Prefix,
		details.IBAN,
		details.VATNumber,
		details.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create company details", zap.Error(err))
		return fmt.Errorf("failed to create company details: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	details.ID = id
	return nil
}

// Latest returns the most recent snapshot
func (r *CompanyRepository) Latest(ctx context.Context) (*entity.CompanyDetails, error) {
	query := `
		SELECT id, name, prefix, iban, vat_number, created_at
		FROM company_details
		ORDER BY id DESC
		LIMIT 1
	`

	var d entity.CompanyDetails
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query).
		Scan(&d.ID, &d.Name, &d.Prefix, &d.IBAN, &d.VATNumber, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company details", zap.Error(err))
		return nil, fmt.Errorf("failed to get company details: %w", err)
	}
	return &d, nil
}

var (
	_ port.ClientRepository  = (*ClientRepository)(nil)
	_ port.CompanyRepository = (*CompanyRepository)(nil)
)

package port

import (
	"context"
	"time"

	"github.com/garyjia/invoicing/internal/domain/entity"
)

// InvoiceFilter narrows an invoice listing
type InvoiceFilter struct {
	Status   entity.InvoiceStatus
	ClientID int64
	Limit    int
	Offset   int
}

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	// GetBySequenceNumber matches case-insensitively
	GetBySequenceNumber(ctx context.Context, sequenceNumber string) (*entity.Invoice, error)
	// Update persists status, sequence number and due date
	Update(ctx context.Context, invoice *entity.Invoice) error
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, error)
	// SequenceNumbersForYear returns every sequence number mentioning year
	SequenceNumbersForYear(ctx context.Context, year int) ([]string, error)
}

// ProductRepository defines persistence operations for InvoiceProduct
type ProductRepository interface {
	CreateBatch(ctx context.Context, products []*entity.InvoiceProduct) error
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoiceProduct, error)
}

// PaymentRepository defines persistence operations for InvoicePayment.
// Payments are append-only.
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.InvoicePayment) error
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoicePayment, error)
}

// PlatformRepository looks up payment platforms
type PlatformRepository interface {
	GetByName(ctx context.Context, name string) (*entity.PaymentPlatform, error)
	List(ctx context.Context) ([]*entity.PaymentPlatform, error)
}

// CounterRepository stores the singleton pro-forma counter
type CounterRepository interface {
	Get(ctx context.Context) (*entity.ProFormaCounter, error)
	// Create returns entity.ErrDuplicateCounter when the row already exists
	Create(ctx context.Context, counter *entity.ProFormaCounter) error
	Update(ctx context.Context, counter *entity.ProFormaCounter) error
}

// GatewayTransactionRepository defines persistence operations for GatewayTransaction
type GatewayTransactionRepository interface {
	Create(ctx context.Context, tx *entity.GatewayTransaction) error
	GetByID(ctx context.Context, id int64) (*entity.GatewayTransaction, error)
	GetByExternalID(ctx context.Context, externalID string) (*entity.GatewayTransaction, error)
	// Update persists status and description
	Update(ctx context.Context, tx *entity.GatewayTransaction) error
	ListOpenBefore(ctx context.Context, before time.Time) ([]*entity.GatewayTransaction, error)
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.GatewayTransaction, error)
}

// ClientRepository defines read access to clients
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id int64) (*entity.Client, error)
	GetByClientNumber(ctx context.Context, number string) (*entity.Client, error)
	List(ctx context.Context) ([]*entity.Client, error)
}

// CompanyRepository stores company detail snapshots
type CompanyRepository interface {
	Create(ctx context.Context, details *entity.CompanyDetails) error
	// Latest returns the snapshot with the highest id, nil if none exist
	Latest(ctx context.Context) (*entity.CompanyDetails, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

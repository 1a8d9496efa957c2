package port

import (
	"context"

	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ClientDirectory resolves client references
type ClientDirectory interface {
	FromClientNumber(ctx context.Context, number string) (*entity.Client, error)
	FromPrimary(ctx context.Context, id int64) (*entity.Client, error)
	List(ctx context.Context) ([]*entity.Client, error)
}

// StockLine is one product quantity change sent to the warehouse.
// Negative quantities return stock.
type StockLine struct {
	SKU      string `json:"sku,omitempty"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

// WarehouseProduct is a product known to the warehouse
type WarehouseProduct struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Stock int             `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

// StockAdjuster talks to the warehouse stock API
type StockAdjuster interface {
	AdjustStock(ctx context.Context, reference string, lines []StockLine) error
	ListProducts(ctx context.Context) ([]WarehouseProduct, error)
}

// GatewayPaymentRequest is what the gateway needs to open a checkout
type GatewayPaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   string
	Issuer      string
	RedirectURL string
	WebhookURL  string
}

// GatewayPayment is the gateway's view of a payment
type GatewayPayment struct {
	ID          string
	Status      entity.GatewayStatus
	Amount      decimal.Decimal
	Currency    string
	CheckoutURL string
}

// Issuer is an iDEAL issuing bank
type Issuer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaymentGateway defines the external payment provider operations
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req GatewayPaymentRequest) (*GatewayPayment, error)
	GetPayment(ctx context.Context, id string) (*GatewayPayment, error)
	ListIssuers(ctx context.Context) ([]Issuer, error)
}

// InvoiceMailer delivers an invoice to its recipient
type InvoiceMailer interface {
	SendInvoice(ctx context.Context, view *entity.InvoiceView, recipient string) error
}

// OperatorNotifier raises anomalies to the operators
type OperatorNotifier interface {
	NotifyOperator(ctx context.Context, subject, body string) error
}

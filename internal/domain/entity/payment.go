package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Well-known payment platform names
const (
	PlatformManual = "manual"
	PlatformIDEAL  = "ideal"
	PlatformMollie = "mollie"
)

// PaymentPlatform is a lookup entry naming where a payment came from
type PaymentPlatform struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InvoicePayment is an append-only ledger entry
type InvoicePayment struct {
	ID         int64           `json:"id"`
	InvoiceID  int64           `json:"invoice_id"`
	PlatformID int64           `json:"platform_id"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

// VATLine is the breakdown for one VAT percentage
type VATLine struct {
	Amount  decimal.Decimal `json:"amount"`
	Taxable decimal.Decimal `json:"taxable"`
	Type    int             `json:"type"`
}

// Totals summarises an invoice's products and payments
type Totals struct {
	TotalPriceWithoutVAT decimal.Decimal `json:"total_price_without_vat"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	TotalVAT             decimal.Decimal `json:"total_vat"`
	TotalPaid            decimal.Decimal `json:"total_paid"`
	Remaining            decimal.Decimal `json:"remaining"`
	VAT                  []VATLine       `json:"vat"`
}

// IsSettled reports whether the payments cover the invoice total
func (t *Totals) IsSettled() bool {
	return t.TotalPaid.GreaterThanOrEqual(t.TotalPrice)
}

package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusNew         InvoiceStatus = "new"
	InvoiceStatusSent        InvoiceStatus = "sent"
	InvoiceStatusPaid        InvoiceStatus = "paid"
	InvoiceStatusReservation InvoiceStatus = "reservation"
	InvoiceStatusCanceled    InvoiceStatus = "canceled"
)

// IsValid reports whether s is a known invoice status
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusNew, InvoiceStatusSent, InvoiceStatusPaid,
		InvoiceStatusReservation, InvoiceStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation
func (s InvoiceStatus) String() string {
	return string(s)
}

// MaxTitleLength is the maximum number of characters kept in an invoice title
const MaxTitleLength = 80

// Invoice is the invoice header. Products and payments are loaded separately.
type Invoice struct {
	ID               int64         `json:"id"`
	SequenceNumber   string        `json:"sequence_number"`
	Status           InvoiceStatus `json:"status"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	ClientID         int64         `json:"client_id"`
	CompanyDetailsID *int64        `json:"company_details_id,omitempty"`
	DateCreated      time.Time     `json:"date_created"`
	DateDue          time.Time     `json:"date_due"`
}

// IsCanceled reports whether the invoice reached its terminal state
func (i *Invoice) IsCanceled() bool {
	return i.Status == InvoiceStatusCanceled
}

// IsOverdue reports whether now is past the due date and the invoice is unpaid
func (i *Invoice) IsOverdue(now time.Time) bool {
	return now.After(i.DateDue) && i.Status != InvoiceStatusPaid
}

// NormalizeTitle trims the title and truncates it to MaxTitleLength characters
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:MaxTitleLength]))
}

// DueDate returns the due date for an invoice created or converted at t
func DueDate(t time.Time, paymentPeriod time.Duration) time.Time {
	return t.Add(paymentPeriod)
}

// InvoiceProduct is a line on an invoice
type InvoiceProduct struct {
	ID            int64           `json:"id"`
	InvoiceID     int64           `json:"invoice_id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Price         decimal.Decimal `json:"price"`
	VATPercentage int             `json:"vat_percentage"`
	Quantity      int             `json:"quantity"`
}

// Subtotal returns price * quantity
func (p *InvoiceProduct) Subtotal() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// VATAmount returns price*quantity/100*vat_percentage, unrounded
func (p *InvoiceProduct) VATAmount() decimal.Decimal {
	return p.Subtotal().Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(p.VATPercentage)))
}

// InvoiceView is an invoice together with its lines, payments and totals
type InvoiceView struct {
	Invoice  *Invoice          `json:"invoice"`
	Client   *Client           `json:"client,omitempty"`
	Products []*InvoiceProduct `json:"products"`
	Payments []*InvoicePayment `json:"payments"`
	Totals   *Totals           `json:"totals"`
	Overdue  bool              `json:"overdue"`
}

// InvoiceListItem is a row in the invoice overview
type InvoiceListItem struct {
	Invoice
	Overdue bool `json:"overdue"`
}

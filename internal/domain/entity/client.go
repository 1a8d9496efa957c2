package entity

import "time"

// Client is the customer an invoice is addressed to
type Client struct {
	ID           int64     `json:"id"`
	ClientNumber string    `json:"client_number"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

// CompanyDetails is a snapshot of the issuing company's details. Invoices keep
// a reference to the snapshot active when they were created.
type CompanyDetails struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	IBAN      string    `json:"iban"`
	VATNumber string    `json:"vat_number"`
	CreatedAt time.Time `json:"created_at"`
}

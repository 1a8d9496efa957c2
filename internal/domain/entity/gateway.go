package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayStatus is the status of a payment-gateway transaction
type GatewayStatus string

const (
	GatewayStatusOpen       GatewayStatus = "open"
	GatewayStatusPending    GatewayStatus = "pending"
	GatewayStatusPaid       GatewayStatus = "paid"
	GatewayStatusFailed     GatewayStatus = "failed"
	GatewayStatusCanceled   GatewayStatus = "canceled"
	GatewayStatusExpired    GatewayStatus = "expired"
	GatewayStatusRefunded   GatewayStatus = "refunded"
	GatewayStatusChargeback GatewayStatus = "chargeback"
	GatewayStatusSettled    GatewayStatus = "settled"
	GatewayStatusAuthorized GatewayStatus = "authorized"
)

var gatewayStatuses = map[GatewayStatus]bool{
	GatewayStatusOpen:       true,
	GatewayStatusPending:    true,
	GatewayStatusPaid:       true,
	GatewayStatusFailed:     true,
	GatewayStatusCanceled:   true,
	GatewayStatusExpired:    true,
	GatewayStatusRefunded:   true,
	GatewayStatusChargeback: true,
	GatewayStatusSettled:    true,
	GatewayStatusAuthorized: true,
}

// IsValid reports whether s is a known gateway status
func (s GatewayStatus) IsValid() bool {
	return gatewayStatuses[s]
}

// String returns the string representation
func (s GatewayStatus) String() string {
	return string(s)
}

// GatewayTransaction tracks one checkout at the payment gateway. Description
// holds the gateway's own payment id once the payment was created.
type GatewayTransaction struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      GatewayStatus   `json:"status"`
	Description string          `json:"description"`
	Secret      string          `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ExternalID returns the gateway payment id, empty until the gateway accepted
// the payment.
func (t *GatewayTransaction) ExternalID() string {
	return t.Description
}

// Transition moves the transaction to next. Only one transition out of open
// is allowed. A paid transaction never moves again and repeating the current
// state is rejected.
//
// The state is updated before ErrPaymentFailed or ErrPaymentCanceled is
// returned; callers persist it and treat those errors as outcomes.
func (t *GatewayTransaction) Transition(next GatewayStatus) error {
	if !next.IsValid() {
		return ErrUnknownGatewayStatus
	}
	switch {
	case t.Status == GatewayStatusPaid:
		return ErrAlreadyPaid
	case t.Status == next:
		return ErrSameState
	case t.Status != GatewayStatusOpen:
		return ErrTransitionConflict
	}

	t.Status = next
	switch next {
	case GatewayStatusFailed:
		return ErrPaymentFailed
	case GatewayStatusCanceled:
		return ErrPaymentCanceled
	}
	return nil
}

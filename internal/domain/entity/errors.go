package entity

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these so callers can
// branch with errors.Is on the kind instead of the concrete error.
var (
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("state conflict")
	ErrNotFound      = errors.New("not found")
	ErrExternal      = errors.New("external dependency failed")
	ErrConfiguration = errors.New("configuration error")

	// ErrGatewayOutcome marks a gateway notification that was recorded but
	// must not lead to a ledger entry.
	ErrGatewayOutcome = errors.New("gateway outcome")
)

// Invoice state conflicts
var (
	ErrInvoiceCanceled  = fmt.Errorf("%w: invoice is canceled", ErrStateConflict)
	ErrNotProForma      = fmt.Errorf("%w: invoice is not a pro-forma invoice", ErrStateConflict)
	ErrInvoiceNotFound  = fmt.Errorf("%w: invoice", ErrNotFound)
	ErrClientNotFound   = fmt.Errorf("%w: client", ErrNotFound)
	ErrPlatformNotFound = fmt.Errorf("%w: payment platform", ErrNotFound)
)

// Sequence counter
var (
	ErrDuplicateCounter = fmt.Errorf("%w: pro-forma counter already exists", ErrConfiguration)
	ErrMalformedNumber  = fmt.Errorf("%w: malformed sequence number", ErrValidation)
)

// Gateway transaction state machine
var (
	ErrAlreadyPaid          = fmt.Errorf("%w: transaction already paid", ErrStateConflict)
	ErrSameState            = fmt.Errorf("%w: transaction already in requested state", ErrStateConflict)
	ErrTransitionConflict   = fmt.Errorf("%w: transaction is no longer open", ErrStateConflict)
	ErrUnknownGatewayStatus = fmt.Errorf("%w: unknown gateway status", ErrValidation)
	ErrTransactionNotFound  = fmt.Errorf("%w: gateway transaction", ErrNotFound)
	ErrPaymentFailed        = fmt.Errorf("%w: payment failed", ErrGatewayOutcome)
	ErrPaymentCanceled      = fmt.Errorf("%w: payment canceled", ErrGatewayOutcome)
	ErrGatewayNotConfigured = fmt.Errorf("%w: payment gateway credentials missing", ErrConfiguration)
	ErrGatewayUnavailable   = fmt.Errorf("%w: payment gateway", ErrExternal)
	ErrWarehouseUnavailable = fmt.Errorf("%w: warehouse stock api", ErrExternal)
)

// ValidationError reports a single invalid or missing field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

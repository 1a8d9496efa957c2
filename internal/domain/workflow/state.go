package workflow

import "github.com/garyjia/invoicing/internal/domain/entity"

// State represents an invoice lifecycle state
type State string

const (
	StateNew         State = State(entity.InvoiceStatusNew)
	StateSent        State = State(entity.InvoiceStatusSent)
	StateReservation State = State(entity.InvoiceStatusReservation)
	StatePaid        State = State(entity.InvoiceStatusPaid)
	StateCanceled    State = State(entity.InvoiceStatusCanceled)
)

var validStates = map[State]bool{
	StateNew:         true,
	StateSent:        true,
	StateReservation: true,
	StatePaid:        true,
	StateCanceled:    true,
}

var terminalStates = map[State]bool{
	StateCanceled: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid invoice state
func (s State) IsValid() bool {
	return validStates[s]
}

// Status converts the state back to the persisted invoice status
func (s State) Status() entity.InvoiceStatus {
	return entity.InvoiceStatus(s)
}

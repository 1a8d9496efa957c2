package workflow

import (
	"errors"
	"fmt"

	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/sequence"
)

// lifecycle is the invoice transition table.
//
// Cancellation is gated on the pro-forma sequence marker rather than on the
// status, so a paid pro-forma invoice can still be canceled. Conversion keeps
// a paid invoice paid.
var lifecycle = buildLifecycle()

func buildLifecycle() Table {
	proForma := func(inv *entity.Invoice) bool { return sequence.IsProForma(inv.SequenceNumber) }

	t := Table{}
	for _, open := range []State{StateNew, StateSent} {
		t.permit(open, TriggerSend, StateSent).
			permit(open, TriggerPay, StatePaid).
			permit(open, TriggerConvert, StateNew).
			permitIf(open, TriggerCancel, StateCanceled, proForma)
	}
	t.permit(StateReservation, TriggerPay, StatePaid).
		permit(StateReservation, TriggerConvert, StateNew).
		permitIf(StateReservation, TriggerCancel, StateCanceled, proForma)
	t.permit(StatePaid, TriggerPay, StatePaid).
		permit(StatePaid, TriggerConvert, StatePaid).
		permitIf(StatePaid, TriggerCancel, StateCanceled, proForma)
	return t
}

// NewInvoiceMachine builds the lifecycle machine for inv
func NewInvoiceMachine(inv *entity.Invoice) *Machine {
	return NewMachine(lifecycle, inv)
}

// Apply fires trigger against inv and updates its status in place. Errors are
// translated to the entity error kinds.
func Apply(inv *entity.Invoice, trigger Trigger) error {
	if inv.IsCanceled() {
		return entity.ErrInvoiceCanceled
	}
	if !State(inv.Status).IsValid() {
		return fmt.Errorf("%w: unknown invoice status %q", entity.ErrValidation, inv.Status)
	}

	m := NewInvoiceMachine(inv)
	if err := m.Fire(trigger); err != nil {
		if errors.Is(err, ErrGuardFailed) && trigger == TriggerCancel {
			return entity.ErrNotProForma
		}
		return fmt.Errorf("%w: %v", entity.ErrStateConflict, err)
	}

	inv.Status = m.State().Status()
	return nil
}

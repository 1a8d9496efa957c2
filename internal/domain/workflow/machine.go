package workflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/garyjia/invoicing/internal/domain/entity"
)

var (
	// ErrInvalidTransition is returned when no rule exists for the trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when the rule exists but its guard rejects the invoice
	ErrGuardFailed = errors.New("guard condition failed")
)

// Guard decides whether a rule applies to the invoice
type Guard func(inv *entity.Invoice) bool

type rule struct {
	to    State
	guard Guard
}

// Table maps a state and a trigger to the next state
type Table map[State]map[Trigger]rule

// permit adds an unguarded rule
func (t Table) permit(from State, trigger Trigger, to State) Table {
	return t.permitIf(from, trigger, to, nil)
}

// permitIf adds a rule taken only when guard passes
func (t Table) permitIf(from State, trigger Trigger, to State, guard Guard) Table {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("invalid transition %s -> %s", from, to))
	}
	if t[from] == nil {
		t[from] = make(map[Trigger]rule)
	}
	t[from][trigger] = rule{to: to, guard: guard}
	return t
}

// Machine walks a single invoice through a Table
type Machine struct {
	table Table
	inv   *entity.Invoice
	state State
}

// NewMachine starts a machine at the invoice's persisted status
func NewMachine(table Table, inv *entity.Invoice) *Machine {
	return &Machine{table: table, inv: inv, state: State(inv.Status)}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// CanFire reports whether Fire would succeed
func (m *Machine) CanFire(trigger Trigger) bool {
	r, ok := m.table[m.state][trigger]
	return ok && (r.guard == nil || r.guard(m.inv))
}

// Fire moves the machine to the next state
func (m *Machine) Fire(trigger Trigger) error {
	r, ok := m.table[m.state][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.state)
	}
	if r.guard != nil && !r.guard(m.inv) {
		return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.state)
	}
	m.state = r.to
	return nil
}

// PermittedTriggers returns the triggers that pass their guards, sorted
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.state]))
	for trigger := range m.table[m.state] {
		if m.CanFire(trigger) {
			triggers = append(triggers, trigger)
		}
	}
	slices.Sort(triggers)
	return triggers
}

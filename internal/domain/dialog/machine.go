package dialog

import (
	"fmt"
)

// Flow holds the immutable transition table for the conversation.
// A Flow is configured once at startup and shared by all sessions; each
// incoming event fires a trigger against the session's current state.
type Flow struct {
	transitions map[State]map[Trigger]State
}

// FlowBuilder configures a Flow.
type FlowBuilder struct {
	transitions map[State]map[Trigger]State
}

// NewFlowBuilder creates an empty flow builder.
func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{
		transitions: make(map[State]map[Trigger]State),
	}
}

// Permit allows a trigger to move the conversation from one state to another.
func (b *FlowBuilder) Permit(from State, trigger Trigger, to State) *FlowBuilder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}

	row, ok := b.transitions[from]
	if !ok {
		row = make(map[Trigger]State)
		b.transitions[from] = row
	}
	row[trigger] = to
	return b
}

// Build freezes the configuration into a Flow.
func (b *FlowBuilder) Build() *Flow {
	frozen := make(map[State]map[Trigger]State, len(b.transitions))
	for from, row := range b.transitions {
		rowCopy := make(map[Trigger]State, len(row))
		for trigger, to := range row {
			rowCopy[trigger] = to
		}
		frozen[from] = rowCopy
	}
	return &Flow{transitions: frozen}
}

// CanFire returns true if the trigger is permitted in the given state.
func (f *Flow) CanFire(from State, trigger Trigger) bool {
	row, ok := f.transitions[from]
	if !ok {
		return false
	}
	_, ok = row[trigger]
	return ok
}

// Fire returns the state reached by firing the trigger from the given state.
func (f *Flow) Fire(from State, trigger Trigger) (State, error) {
	if !from.IsValid() {
		return from, fmt.Errorf("%w: %s", ErrInvalidState, from)
	}
	if from.IsTerminal() {
		return from, fmt.Errorf("%w: cannot fire %s from terminal state %s", ErrInvalidTransition, trigger, from)
	}

	row, ok := f.transitions[from]
	if !ok {
		return from, fmt.Errorf("%w: no transitions from state %s", ErrInvalidTransition, from)
	}

	to, ok := row[trigger]
	if !ok {
		return from, fmt.Errorf("%w: cannot fire %s from state %s", ErrInvalidTransition, trigger, from)
	}

	return to, nil
}

// PermittedTriggers returns the triggers that can fire in the given state.
func (f *Flow) PermittedTriggers(from State) []Trigger {
	row, ok := f.transitions[from]
	if !ok {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(row))
	for trigger := range row {
		triggers = append(triggers, trigger)
	}
	return triggers
}

package dialog

// State represents what the bot expects next in one conversation.
type State string

const (
	// StateIdle means no flow is active; the main menu is shown.
	StateIdle State = "IDLE"
	// StateAwaitingExpense means the bot expects expense text or a receipt photo.
	StateAwaitingExpense State = "AWAITING_EXPENSE"
	// StateAwaitingConfirmation means a parsed draft is pending a yes/no.
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	// StateAwaitingRefinement means the bot expects correction text for the draft.
	StateAwaitingRefinement State = "AWAITING_REFINEMENT"
	// StateAwaitingEditTarget means the bot expects a reply referencing a prior record.
	StateAwaitingEditTarget State = "AWAITING_EDIT_TARGET"
	// StateAwaitingDeleteTarget means the bot expects a target reference or "all".
	StateAwaitingDeleteTarget State = "AWAITING_DELETE_TARGET"
	// StateAwaitingDeleteConfirm means a destructive delete is pending a yes/no.
	StateAwaitingDeleteConfirm State = "AWAITING_DELETE_CONFIRM"
	// StateAwaitingQuery means the bot expects a free-text analytics question.
	StateAwaitingQuery State = "AWAITING_QUERY"
	// StateTerminated means the conversation has ended.
	StateTerminated State = "TERMINATED"
)

var validStates = map[State]bool{
	StateIdle:                  true,
	StateAwaitingExpense:       true,
	StateAwaitingConfirmation:  true,
	StateAwaitingRefinement:    true,
	StateAwaitingEditTarget:    true,
	StateAwaitingDeleteTarget:  true,
	StateAwaitingDeleteConfirm: true,
	StateAwaitingQuery:         true,
	StateTerminated:            true,
}

// IsTerminal returns true if no further transitions are allowed.
func (s State) IsTerminal() bool {
	return s == StateTerminated
}

// IsValid returns true if the state is a known conversation state.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

package dialog

// NewConversationFlow builds the transition table for the expense bot
// conversation. Every handler fires a trigger through this flow before
// performing its side effects, so an event arriving in the wrong state is
// rejected instead of silently acted on.
func NewConversationFlow() *Flow {
	b := NewFlowBuilder()

	// Main menu. Export runs inline and stays in the menu.
	b.Permit(StateIdle, TriggerStart, StateIdle).
		Permit(StateIdle, TriggerMenuInsert, StateAwaitingExpense).
		Permit(StateIdle, TriggerMenuEdit, StateAwaitingEditTarget).
		Permit(StateIdle, TriggerMenuDelete, StateAwaitingDeleteTarget).
		Permit(StateIdle, TriggerMenuExport, StateIdle).
		Permit(StateIdle, TriggerMenuAnalyse, StateAwaitingQuery).
		Permit(StateIdle, TriggerQuit, StateTerminated)

	// Inserting: text or photo goes to extraction; /start short-circuits
	// back to the menu; a parse failure re-prompts in place.
	b.Permit(StateAwaitingExpense, TriggerExpenseParsed, StateAwaitingConfirmation).
		Permit(StateAwaitingExpense, TriggerParseFailed, StateAwaitingExpense).
		Permit(StateAwaitingExpense, TriggerStart, StateIdle).
		Permit(StateAwaitingExpense, TriggerQuit, StateTerminated)

	// Confirmation gate for both insert and edit. Yes persists and loops
	// back to expect another expense; no asks for a correction.
	b.Permit(StateAwaitingConfirmation, TriggerConfirmYes, StateAwaitingExpense).
		Permit(StateAwaitingConfirmation, TriggerConfirmNo, StateAwaitingRefinement).
		Permit(StateAwaitingConfirmation, TriggerStart, StateIdle).
		Permit(StateAwaitingConfirmation, TriggerQuit, StateTerminated)

	// Refinement loops back to the confirmation gate.
	b.Permit(StateAwaitingRefinement, TriggerRefined, StateAwaitingConfirmation).
		Permit(StateAwaitingRefinement, TriggerParseFailed, StateAwaitingRefinement).
		Permit(StateAwaitingRefinement, TriggerStart, StateIdle).
		Permit(StateAwaitingRefinement, TriggerQuit, StateTerminated)

	// Edit: a resolved target flows into the shared confirmation gate; an
	// unresolved target or an unusable correction re-prompts.
	b.Permit(StateAwaitingEditTarget, TriggerTargetResolved, StateAwaitingConfirmation).
		Permit(StateAwaitingEditTarget, TriggerTargetFailed, StateAwaitingEditTarget).
		Permit(StateAwaitingEditTarget, TriggerParseFailed, StateAwaitingEditTarget).
		Permit(StateAwaitingEditTarget, TriggerStart, StateIdle).
		Permit(StateAwaitingEditTarget, TriggerQuit, StateTerminated)

	// Delete: "all" or a resolved target both require explicit confirmation.
	b.Permit(StateAwaitingDeleteTarget, TriggerDeleteAll, StateAwaitingDeleteConfirm).
		Permit(StateAwaitingDeleteTarget, TriggerTargetResolved, StateAwaitingDeleteConfirm).
		Permit(StateAwaitingDeleteTarget, TriggerTargetFailed, StateAwaitingDeleteTarget).
		Permit(StateAwaitingDeleteTarget, TriggerStart, StateIdle).
		Permit(StateAwaitingDeleteTarget, TriggerQuit, StateTerminated)

	b.Permit(StateAwaitingDeleteConfirm, TriggerConfirmYes, StateAwaitingExpense).
		Permit(StateAwaitingDeleteConfirm, TriggerConfirmNo, StateAwaitingExpense).
		Permit(StateAwaitingDeleteConfirm, TriggerStart, StateIdle).
		Permit(StateAwaitingDeleteConfirm, TriggerQuit, StateTerminated)

	// Analytics: answering a question keeps the state so follow-ups work.
	b.Permit(StateAwaitingQuery, TriggerQueryHandled, StateAwaitingQuery).
		Permit(StateAwaitingQuery, TriggerStart, StateIdle).
		Permit(StateAwaitingQuery, TriggerQuit, StateTerminated)

	return b.Build()
}

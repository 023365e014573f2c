package dialog

// Trigger is an event that can cause a conversation state transition.
type Trigger string

const (
	TriggerStart          Trigger = "START"
	TriggerMenuInsert     Trigger = "MENU_INSERT"
	TriggerMenuEdit       Trigger = "MENU_EDIT"
	TriggerMenuDelete     Trigger = "MENU_DELETE"
	TriggerMenuExport     Trigger = "MENU_EXPORT"
	TriggerMenuAnalyse    Trigger = "MENU_ANALYSE"
	TriggerQuit           Trigger = "QUIT"
	TriggerExpenseParsed  Trigger = "EXPENSE_PARSED"
	TriggerParseFailed    Trigger = "PARSE_FAILED"
	TriggerConfirmYes     Trigger = "CONFIRM_YES"
	TriggerConfirmNo      Trigger = "CONFIRM_NO"
	TriggerRefined        Trigger = "REFINED"
	TriggerTargetResolved Trigger = "TARGET_RESOLVED"
	TriggerTargetFailed   Trigger = "TARGET_FAILED"
	TriggerDeleteAll      Trigger = "DELETE_ALL"
	TriggerQueryHandled   Trigger = "QUERY_HANDLED"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}

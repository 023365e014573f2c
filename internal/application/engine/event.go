package engine

// EventKind classifies an inbound chat event.
type EventKind int

const (
	// EventMessage is a plain text message.
	EventMessage EventKind = iota
	// EventCallback is an inline keyboard button press.
	EventCallback
	// EventPhoto is a photo message (receipt).
	EventPhoto
	// EventDocument is a document message (PDF receipt).
	EventDocument
)

// Event is one deduplicated inbound chat event delivered by the transport
// boundary. Exactly one handler runs per session at a time.
type Event struct {
	UpdateID   int64
	ChatID     int64
	TelegramID int64
	Username   string
	MessageID  int

	Kind EventKind
	Text string

	// CallbackID and CallbackData are set for button presses.
	CallbackID   string
	CallbackData string

	// FileID is set for photos and documents.
	FileID   string
	MimeType string

	// ReplyToText carries the text of the quoted message when the user
	// replied to a prior bot message, empty otherwise.
	ReplyToText string
}

// Menu callback identifiers. These are the values wired into the inline
// keyboards the bot sends.
const (
	callbackInsert     = "insert_expense"
	callbackEdit       = "edit_expense"
	callbackDelete     = "delete_expense"
	callbackExport     = "export_expenses"
	callbackAnalyse    = "analyse_expenses"
	callbackQuit       = "quit"
	callbackConfirmYes = "confirmation"
	callbackConfirmNo  = "correction"
)

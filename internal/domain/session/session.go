package session

import (
	"time"

	"github.com/chrxmium/expense-bot/internal/domain/dialog"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
)

// DeleteTarget identifies what a pending delete confirmation applies to:
// either every record the user owns, or one specific expense.
type DeleteTarget struct {
	All       bool
	ExpenseID int64
}

// IsSet reports whether a delete target has been resolved.
func (t DeleteTarget) IsSet() bool {
	return t.All || t.ExpenseID != 0
}

// Session is the durable per-conversation state owned by the dialogue
// engine. One session exists per chat; every handler transition mutates it
// and the engine stores it back after handling each event.
type Session struct {
	ChatID int64
	State  dialog.State

	// Pending is the most recently parsed or refined draft, nil if none.
	Pending *entity.ExpenseDraft

	// EditingExpenseID is non-zero while a confirmation applies to an
	// existing record instead of a new insert.
	EditingExpenseID int64

	DeleteTarget DeleteTarget

	// LastAnswer is the previous distilled analytics answer, kept as
	// context for follow-up questions.
	LastAnswer string

	UpdatedAt time.Time
}

// New creates a fresh idle session for a chat.
func New(chatID int64) *Session {
	return &Session{
		ChatID: chatID,
		State:  dialog.StateIdle,
	}
}

// Reset clears all conversation-scoped fields and returns to idle.
func (s *Session) Reset() {
	s.State = dialog.StateIdle
	s.Pending = nil
	s.EditingExpenseID = 0
	s.DeleteTarget = DeleteTarget{}
	s.LastAnswer = ""
}

// ClearPending drops the draft and any edit flag after a confirmation
// flow finishes, without touching the analytics context.
func (s *Session) ClearPending() {
	s.Pending = nil
	s.EditingExpenseID = 0
	s.DeleteTarget = DeleteTarget{}
}

// IsEditing reports whether the pending draft belongs to an edit flow.
func (s *Session) IsEditing() bool {
	return s.EditingExpenseID != 0
}

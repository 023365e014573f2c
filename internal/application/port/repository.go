package port

import (
	"context"

	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/chrxmium/expense-bot/internal/domain/session"
)

// UserRepository manages bot users.
type UserRepository interface {
	// GetOrCreate resolves a Telegram account to an internal user,
	// creating the user on first contact.
	GetOrCreate(ctx context.Context, telegramID int64) (*entity.User, error)

	// SetPreferredCurrency persists the user's default currency.
	SetPreferredCurrency(ctx context.Context, userID, currency string) error

	// ListTelegramIDs returns the Telegram ids of every known user.
	ListTelegramIDs(ctx context.Context) ([]int64, error)
}

// ExpenseRepository manages persisted expense records. Every operation is
// scoped to the owning user; no method reads or mutates across owners.
type ExpenseRepository interface {
	Insert(ctx context.Context, expense *entity.Expense) (int64, error)
	Update(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64, userID string) (*entity.Expense, error)
	Delete(ctx context.Context, id int64, userID string) (bool, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)

	// FindByFields returns the ids of every record whose five fields
	// exactly match the draft. The caller treats zero or multiple
	// matches as a resolution failure.
	FindByFields(ctx context.Context, userID string, draft *entity.ExpenseDraft) ([]int64, error)

	ListByUser(ctx context.Context, userID string) ([]*entity.Expense, error)
	ListCategories(ctx context.Context, userID string) ([]string, error)
}

// WhitelistRepository manages access-control entries.
type WhitelistRepository interface {
	IsWhitelisted(ctx context.Context, username string) (bool, error)
	Add(ctx context.Context, username, notes string) (bool, error)
	Remove(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]*entity.WhitelistEntry, error)
}

// SessionRepository persists conversation state across restarts.
type SessionRepository interface {
	// Get returns the stored session for a chat, or nil if none exists.
	Get(ctx context.Context, chatID int64) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
	Delete(ctx context.Context, chatID int64) error
}

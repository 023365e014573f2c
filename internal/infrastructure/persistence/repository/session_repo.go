package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/dialog"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/chrxmium/expense-bot/internal/domain/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionRepository implements port.SessionRepository, persisting
// conversation state so a restart resumes every chat where it left off.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) port.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// draftRecord is the stored form of a pending draft. The date is carried
// explicitly because the in-memory draft does not marshal it.
type draftRecord struct {
	Currency    string          `json:"currency"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

type deleteTargetRecord struct {
	All       bool  `json:"all"`
	ExpenseID int64 `json:"expense_id"`
}

// Get returns the stored session for a chat, or nil if none exists.
func (r *SessionRepository) Get(ctx context.Context, chatID int64) (*session.Session, error) {
	query := `
		SELECT chat_id, state, COALESCE(pending_expense, ''), editing_expense_id,
			COALESCE(delete_target, ''), COALESCE(last_answer, ''), updated_at
		FROM sessions
		WHERE chat_id = ?
	`

	var (
		sess        session.Session
		state       string
		pendingJSON string
		targetJSON  string
	)
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(
		&sess.ChatID,
		&state,
		&pendingJSON,
		&sess.EditingExpenseID,
		&targetJSON,
		&sess.LastAnswer,
		&sess.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get session", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.State = dialog.State(state)
	if !sess.State.IsValid() {
		// A stored state this build no longer knows is unrecoverable;
		// start the chat over rather than fail every event.
		r.logger.Warn("Discarding session with unknown state",
			zap.Int64("chat_id", chatID),
			zap.String("state", state))
		return nil, nil
	}

	if pendingJSON != "" {
		var record draftRecord
		if err := json.Unmarshal([]byte(pendingJSON), &record); err != nil {
			return nil, fmt.Errorf("failed to decode pending draft: %w", err)
		}
		draft := &entity.ExpenseDraft{
			Currency:    record.Currency,
			Amount:      record.Price,
			Category:    record.Category,
			Description: record.Description,
		}
		if record.Date != "" {
			date, err := time.Parse(entity.DateLayout, record.Date)
			if err != nil {
				return nil, fmt.Errorf("failed to decode pending draft date: %w", err)
			}
			draft.Date = date
		}
		sess.Pending = draft
	}

	if targetJSON != "" {
		var record deleteTargetRecord
		if err := json.Unmarshal([]byte(targetJSON), &record); err != nil {
			return nil, fmt.Errorf("failed to decode delete target: %w", err)
		}
		sess.DeleteTarget = session.DeleteTarget{All: record.All, ExpenseID: record.ExpenseID}
	}

	return &sess, nil
}

// Save upserts the session.
func (r *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	var pendingJSON string
	if sess.Pending != nil {
		data, err := json.Marshal(draftRecord{
			Currency:    sess.Pending.Currency,
			Price:       sess.Pending.Amount,
			Category:    sess.Pending.Category,
			Description: sess.Pending.Description,
			Date:        sess.Pending.Date.Format(entity.DateLayout),
		})
		if err != nil {
			return fmt.Errorf("failed to encode pending draft: %w", err)
		}
		pendingJSON = string(data)
	}

	var targetJSON string
	if sess.DeleteTarget.IsSet() {
		data, err := json.Marshal(deleteTargetRecord{
			All:       sess.DeleteTarget.All,
			ExpenseID: sess.DeleteTarget.ExpenseID,
		})
		if err != nil {
			return fmt.Errorf("failed to encode delete target: %w", err)
		}
		targetJSON = string(data)
	}

	query := `
		INSERT INTO sessions (chat_id, state, pending_expense, editing_expense_id, delete_target, last_answer, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			state = excluded.state,
			pending_expense = excluded.pending_expense,
			editing_expense_id = excluded.editing_expense_id,
			delete_target = excluded.delete_target,
			last_answer = excluded.last_answer,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		sess.ChatID,
		sess.State.String(),
		pendingJSON,
		sess.EditingExpenseID,
		targetJSON,
		sess.LastAnswer,
		sess.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save session", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the session for a chat.
func (r *SessionRepository) Delete(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		r.logger.Error("Failed to delete session", zap.Int64("chat_id", chatID), zap.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

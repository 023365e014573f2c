package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate resolves a Telegram account to an internal user, creating
// the user on first contact.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64) (*entity.User, error) {
	user, err := r.getByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &entity.User{
		ID:         uuid.New().String(),
		TelegramID: telegramID,
	}
	query := `INSERT INTO users (id, telegram_id) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.TelegramID); err != nil {
		// A concurrent first contact may have won the insert.
		existing, lookupErr := r.getByTelegramID(ctx, telegramID)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
		r.logger.Error("Failed to create user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("Created user",
		zap.String("user_id", user.ID),
		zap.Int64("telegram_id", telegramID))
	return user, nil
}

func (r *UserRepository) getByTelegramID(ctx context.Context, telegramID int64) (*entity.User, error) {
	query := `
		SELECT id, telegram_id, COALESCE(preferred_currency, ''), created_at
		FROM users
		WHERE telegram_id = ?
	`

	var user entity.User
	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(
		&user.ID,
		&user.TelegramID,
		&user.PreferredCurrency,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetPreferredCurrency persists the user's default currency.
func (r *UserRepository) SetPreferredCurrency(ctx context.Context, userID, currency string) error {
	query := `UPDATE users SET preferred_currency = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, currency, userID); err != nil {
		r.logger.Error("Failed to set preferred currency",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to set preferred currency: %w", err)
	}
	return nil
}

// ListTelegramIDs returns the Telegram ids of every known user.
func (r *UserRepository) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT telegram_id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

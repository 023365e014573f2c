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

// WhitelistRepository implements port.WhitelistRepository. Usernames are
// stored normalized (no leading @, lower case); callers normalize before
// hitting the repository.
type WhitelistRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWhitelistRepository creates a new whitelist repository
func NewWhitelistRepository(db *sql.DB, logger *zap.Logger) port.WhitelistRepository {
	return &WhitelistRepository{
		db:     db,
		logger: logger,
	}
}

// IsWhitelisted reports whether the username is allowed in.
func (r *WhitelistRepository) IsWhitelisted(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM whitelisted_users WHERE username = ?`, username).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}
	return true, nil
}

// Add inserts a whitelist entry and reports whether it was new.
func (r *WhitelistRepository) Add(ctx context.Context, username, notes string) (bool, error) {
	query := `
		INSERT INTO whitelisted_users (id, username, notes)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, uuid.New().String(), username, notes)
	if err != nil {
		r.logger.Error("Failed to add whitelist entry", zap.String("username", username), zap.Error(err))
		return false, fmt.Errorf("failed to add whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		r.logger.Info("Whitelisted user", zap.String("username", username))
	}
	return affected > 0, nil
}

// Remove deletes a whitelist entry and reports whether it existed.
func (r *WhitelistRepository) Remove(ctx context.Context, username string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM whitelisted_users WHERE username = ?`, username)
	if err != nil {
		r.logger.Error("Failed to remove whitelist entry", zap.String("username", username), zap.Error(err))
		return false, fmt.Errorf("failed to remove whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns every whitelist entry, oldest first.
func (r *WhitelistRepository) List(ctx context.Context) ([]*entity.WhitelistEntry, error) {
	query := `
		SELECT id, username, added_date, COALESCE(notes, '')
		FROM whitelisted_users
		ORDER BY added_date
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelist: %w", err)
	}
	defer rows.Close()

	var entries []*entity.WhitelistEntry
	for rows.Next() {
		var entry entity.WhitelistEntry
		if err := rows.Scan(&entry.ID, &entry.Username, &entry.AddedDate, &entry.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

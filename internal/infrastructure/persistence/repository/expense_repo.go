package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpenseRepository implements port.ExpenseRepository. Amounts are stored
// as fixed two-decimal strings and dates as YYYY-MM-DD so queries written
// by the analytics agent can compare them lexically.
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a new expense and returns its id.
func (r *ExpenseRepository) Insert(ctx context.Context, expense *entity.Expense) (int64, error) {
	query := `
		INSERT INTO expenses (user_id, price, category, description, date, currency)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		expense.UserID,
		entity.FormatAmount(expense.Amount),
		expense.Category,
		expense.Description,
		expense.Date.Format(entity.DateLayout),
		expense.Currency,
	)
	if err != nil {
		r.logger.Error("Failed to insert expense", zap.String("user_id", expense.UserID), zap.Error(err))
		return 0, fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	r.logger.Info("Inserted expense",
		zap.Int64("id", id),
		zap.String("user_id", expense.UserID))
	return id, nil
}

// Update rewrites all five fields of an existing record, scoped to its
// owner.
func (r *ExpenseRepository) Update(ctx context.Context, expense *entity.Expense) error {
	query := `
		UPDATE expenses
		SET price = ?, category = ?, description = ?, date = ?, currency = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.FormatAmount(expense.Amount),
		expense.Category,
		expense.Description,
		expense.Date.Format(entity.DateLayout),
		expense.Currency,
		expense.ID,
		expense.UserID,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.Int64("id", expense.ID), zap.Error(err))
		return fmt.Errorf("failed to update expense: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d not found for user", expense.ID)
	}
	return nil
}

// GetByID returns one record, or nil if the user owns no such expense.
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64, userID string) (*entity.Expense, error) {
	query := `
		SELECT id, user_id, price, category, description, date, currency, created_at
		FROM expenses
		WHERE id = ? AND user_id = ?
	`

	expense, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// Delete removes one record and reports whether it existed.
func (r *ExpenseRepository) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete expense", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll removes every record the user owns and returns the count.
func (r *ExpenseRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID)
	if err != nil {
		r.logger.Error("Failed to delete expenses", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to delete expenses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	r.logger.Info("Deleted all expenses",
		zap.String("user_id", userID),
		zap.Int64("count", affected))
	return affected, nil
}

// FindByFields returns the ids of every record whose five fields exactly
// match the draft.
func (r *ExpenseRepository) FindByFields(ctx context.Context, userID string, draft *entity.ExpenseDraft) ([]int64, error) {
	query := `
		SELECT id FROM expenses
		WHERE user_id = ? AND price = ? AND category = ? AND description = ? AND date = ? AND currency = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query,
		userID,
		entity.FormatAmount(draft.Amount),
		draft.Category,
		draft.Description,
		draft.Date.Format(entity.DateLayout),
		draft.Currency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match expense fields: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByUser returns every record the user owns, oldest first.
func (r *ExpenseRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Expense, error) {
	query := `
		SELECT id, user_id, price, category, description, date, currency, created_at
		FROM expenses
		WHERE user_id = ?
		ORDER BY date, id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// ListCategories returns the distinct categories the user has recorded.
func (r *ExpenseRepository) ListCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM expenses WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ExpenseRepository) scanOne(row rowScanner) (*entity.Expense, error) {
	var expense entity.Expense
	var price, date string

	err := row.Scan(
		&expense.ID,
		&expense.UserID,
		&price,
		&expense.Category,
		&expense.Description,
		&date,
		&expense.Currency,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("bad stored price %q: %w", price, err)
	}
	expense.Amount = amount

	parsed, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("bad stored date %q: %w", date, err)
	}
	expense.Date = parsed

	return &expense, nil
}

package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnparseable indicates the extraction or refinement collaborator
// produced output that cannot be turned into a complete expense draft.
var ErrUnparseable = errors.New("unparseable expense details")

// DateLayout is the calendar date format used everywhere an expense date
// is rendered or parsed.
const DateLayout = "2006-01-02"

// ExpenseDraft is the five-field normalized representation of one spending
// event, produced by extraction or refinement. It is never persisted until
// the user confirms it.
type ExpenseDraft struct {
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"-"`
}

// Expense is a persisted expense record owned by a user.
type Expense struct {
	ID          int64
	UserID      string
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        time.Time
	Currency    string
	CreatedAt   time.Time
}

// Normalize upper-cases the currency, title-cases category and description
// and truncates the amount to two fractional digits.
func (d *ExpenseDraft) Normalize() {
	// cases.Caser carries a stateful transformer and must not be shared
	// across the goroutines handling concurrent chats.
	caser := cases.Title(language.English)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	d.Category = caser.String(strings.TrimSpace(d.Category))
	d.Description = caser.String(strings.TrimSpace(d.Description))
	d.Amount = d.Amount.Round(2)
}

// Validate checks that all five fields are present and well-typed.
// A draft failing validation is a parse error, not a partial expense.
func (d *ExpenseDraft) Validate() error {
	if len(d.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code, got %q", ErrUnparseable, d.Currency)
	}
	if d.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must be non-negative", ErrUnparseable)
	}
	if d.Category == "" {
		return fmt.Errorf("%w: category is empty", ErrUnparseable)
	}
	if d.Description == "" {
		return fmt.Errorf("%w: description is empty", ErrUnparseable)
	}
	if d.Date.IsZero() {
		return fmt.Errorf("%w: date is missing", ErrUnparseable)
	}
	return nil
}

// FormatAmount renders an amount with exactly two decimal digits.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ToExpense converts a confirmed draft into a record for the given owner.
func (d *ExpenseDraft) ToExpense(userID string) *Expense {
	return &Expense{
		UserID:      userID,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.Date,
		Currency:    d.Currency,
	}
}

// DraftOf returns the draft view of a persisted record, used when an edit
// flow re-opens an existing expense for refinement.
func (e *Expense) DraftOf() *ExpenseDraft {
	return &ExpenseDraft{
		Currency:    e.Currency,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
	}
}

package entity

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func draftFixture() *ExpenseDraft {
	return &ExpenseDraft{
		Currency:    "sgd",
		Amount:      decimal.NewFromFloat(12.5),
		Category:    "food",
		Description: "chicken rice",
		Date:        time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestNormalize(t *testing.T) {
	draft := draftFixture()
	draft.Normalize()

	assert.Equal(t, "SGD", draft.Currency)
	assert.Equal(t, "Food", draft.Category)
	assert.Equal(t, "Chicken Rice", draft.Description)
}

func TestNormalize_RoundsToTwoDecimals(t *testing.T) {
	draft := draftFixture()
	draft.Amount = decimal.RequireFromString("3.14159")
	draft.Normalize()

	assert.Equal(t, "3.14", FormatAmount(draft.Amount))
}

func TestNormalize_ConcurrentDrafts(t *testing.T) {
	// Drafts from different chats are normalized on separate goroutines;
	// run under -race.
	var wg sync.WaitGroup
	results := make([]*ExpenseDraft, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			draft := draftFixture()
			draft.Normalize()
			results[i] = draft
		}(i)
	}
	wg.Wait()

	for _, draft := range results {
		assert.Equal(t, "Food", draft.Category)
		assert.Equal(t, "Chicken Rice", draft.Description)
	}
}

func TestFormatAmount_AlwaysTwoDecimals(t *testing.T) {
	assert.Equal(t, "12.00", FormatAmount(decimal.NewFromInt(12)))
	assert.Equal(t, "12.50", FormatAmount(decimal.RequireFromString("12.5")))
	assert.Equal(t, "0.99", FormatAmount(decimal.RequireFromString("0.99")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ExpenseDraft)
		ok     bool
	}{
		{"complete draft", func(d *ExpenseDraft) {}, true},
		{"zero amount is fine", func(d *ExpenseDraft) { d.Amount = decimal.Zero }, true},
		{"bad currency", func(d *ExpenseDraft) { d.Currency = "DOLLARS" }, false},
		{"empty currency", func(d *ExpenseDraft) { d.Currency = "" }, false},
		{"negative amount", func(d *ExpenseDraft) { d.Amount = decimal.NewFromInt(-1) }, false},
		{"missing category", func(d *ExpenseDraft) { d.Category = "" }, false},
		{"missing description", func(d *ExpenseDraft) { d.Description = "" }, false},
		{"missing date", func(d *ExpenseDraft) { d.Date = time.Time{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := draftFixture()
			draft.Normalize()
			tt.mutate(draft)

			err := draft.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnparseable)
			}
		})
	}
}

func TestToExpenseAndDraftOf(t *testing.T) {
	draft := draftFixture()
	draft.Normalize()

	expense := draft.ToExpense("user-1")
	assert.Equal(t, "user-1", expense.UserID)
	assert.Equal(t, "SGD", expense.Currency)
	assert.True(t, expense.Amount.Equal(draft.Amount))

	back := expense.DraftOf()
	assert.Equal(t, draft.Currency, back.Currency)
	assert.Equal(t, draft.Category, back.Category)
	assert.Equal(t, draft.Description, back.Description)
	assert.Equal(t, draft.Date, back.Date)
}

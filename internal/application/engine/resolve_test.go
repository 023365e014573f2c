package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReference_EmbeddedIdWins(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	id, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	// The quoted text carries both an id and fields that would match a
	// different record; the id must win.
	other := coffeeDraft()
	other.Description = "Tea"
	_, err = f.expenses.Insert(ctx, other.ToExpense("user-42"))
	require.NoError(t, err)

	got, err := f.engine.resolveReference(ctx, "user-42", "✅ Recorded expense #1:\n📝 Description: Tea\n")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestResolveReference_UnknownIdFails(t *testing.T) {
	f := newFixture(Options{})

	_, err := f.engine.resolveReference(context.Background(), "user-42", "expense #999")
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolveReference_FieldMatch(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	id, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	text := "📌 Here are the details I got from your input:\n" +
		"📈 Currency: SGD\n" +
		"💰 Amount: 5.00\n" +
		"📂 Category: Food\n" +
		"📝 Description: Coffee\n" +
		"📅 Date: 2025-06-01\n"

	got, err := f.engine.resolveReference(ctx, "user-42", text)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestResolveReference_AmbiguousFieldMatchFails(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	_, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)
	_, err = f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	text := "📈 Currency: SGD\n💰 Amount: 5.00\n📂 Category: Food\n📝 Description: Coffee\n📅 Date: 2025-06-01\n"
	_, err = f.engine.resolveReference(ctx, "user-42", text)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolveReference_MissingFieldFails(t *testing.T) {
	f := newFixture(Options{})

	text := "💰 Amount: 5.00\n📂 Category: Food\n"
	_, err := f.engine.resolveReference(context.Background(), "user-42", text)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolveReference_OtherUsersRecordIsInvisible(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	_, err := f.expenses.Insert(ctx, draft.ToExpense("someone-else"))
	require.NoError(t, err)

	_, err = f.engine.resolveReference(ctx, "user-42", "expense #1")
	assert.ErrorIs(t, err, ErrResolution)
}

func TestParseSummaryFields(t *testing.T) {
	text := "📈 Currency: SGD\n💰 Amount: 12.50\n📂 Category: Transport\n📝 Description: Taxi Home\n📅 Date: 2025-01-31\n"

	draft, err := parseSummaryFields(text)
	require.NoError(t, err)
	assert.Equal(t, "SGD", draft.Currency)
	assert.True(t, draft.Amount.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "Transport", draft.Category)
	assert.Equal(t, "Taxi Home", draft.Description)
	assert.Equal(t, "2025-01-31", draft.Date.Format("2006-01-02"))
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_AcceptsScopedSelect(t *testing.T) {
	err := validate("SELECT category, SUM(price) FROM expenses WHERE user_id = 'u-1' GROUP BY category", "u-1")
	assert.NoError(t, err)
}

func TestValidate_AcceptsCTE(t *testing.T) {
	q := "WITH monthly AS (SELECT date, price FROM expenses WHERE user_id = 'u-1') SELECT SUM(price) FROM monthly"
	assert.NoError(t, validate(q, "u-1"))
}

func TestValidate_AllowsTrailingSemicolon(t *testing.T) {
	assert.NoError(t, validate("SELECT * FROM expenses WHERE user_id = 'u-1';", "u-1"))
}

func TestValidate_RejectsMutations(t *testing.T) {
	cases := []string{
		"DELETE FROM expenses WHERE user_id = 'u-1'",
		"UPDATE expenses SET price = 0 WHERE user_id = 'u-1'",
		"INSERT INTO expenses (user_id) VALUES ('u-1')",
		"DROP TABLE expenses",
		"PRAGMA table_info(expenses)",
	}
	for _, q := range cases {
		assert.Error(t, validate(q, "u-1"), q)
	}
}

func TestValidate_RejectsStackedStatements(t *testing.T) {
	err := validate("SELECT 1 WHERE user_id = 'u-1'; SELECT 2", "u-1")
	assert.Error(t, err)
}

func TestValidate_RejectsUnscopedQuery(t *testing.T) {
	err := validate("SELECT SUM(price) FROM expenses", "u-1")
	assert.Error(t, err)
}

func TestValidate_KeywordInsideIdentifierIsFine(t *testing.T) {
	// "date" contains no forbidden word; "updated_at" contains "update"
	// only as a substring and must not trip the guard.
	q := "SELECT updated_at FROM expenses WHERE user_id = 'u-1'"
	assert.NoError(t, validate(q, "u-1"))
}

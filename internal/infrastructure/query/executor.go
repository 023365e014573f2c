// Package query executes model-generated SQL under a read-only guard.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrxmium/expense-bot/pkg/database"
	"go.uber.org/zap"
)

// forbiddenKeywords are statement kinds the executor refuses outright.
// The guard is deliberately blunt; a rejected query goes back to the
// model for a rewrite rather than failing the whole conversation.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"replace", "truncate", "attach", "detach", "pragma", "vacuum",
}

// maxRows caps the result set handed back to the model.
const maxRows = 200

// Executor runs validated SELECT statements scoped to one user.
type Executor struct {
	db     *database.DB
	logger *zap.Logger
}

// NewExecutor creates a guarded query executor.
func NewExecutor(db *database.DB, logger *zap.Logger) *Executor {
	return &Executor{db: db, logger: logger}
}

// Execute validates and runs one query, returning the rows as a JSON
// array of objects. Validation failures and SQL errors are both returned
// as errors so the caller can route them into query re-synthesis.
func (e *Executor) Execute(ctx context.Context, query, userID string) (string, error) {
	if err := validate(query, userID); err != nil {
		return "", err
	}

	e.logger.Debug("Executing analytics query",
		zap.String("user_id", userID),
		zap.String("query", query))

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}

	results := make([]map[string]interface{}, 0)
	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if len(results) >= maxRows {
			break
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration failed: %w", err)
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode result set: %w", err)
	}
	return string(encoded), nil
}

// validate enforces the single-SELECT and user-scoping rules.
func validate(query, userID string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}

	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	for _, keyword := range forbiddenKeywords {
		if containsWord(lowered, keyword) {
			return fmt.Errorf("statement kind %q is not allowed", keyword)
		}
	}

	if !strings.Contains(trimmed, userID) {
		return fmt.Errorf("query is not scoped to the requesting user")
	}
	return nil
}

// containsWord reports whether the keyword appears as a standalone word.
func containsWord(s, word string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		before := pos == 0 || !isWordChar(s[pos-1])
		afterIdx := pos + len(word)
		after := afterIdx >= len(s) || !isWordChar(s[afterIdx])
		if before && after {
			return true
		}
		idx = pos + len(word)
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

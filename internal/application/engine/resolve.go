package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ErrResolution indicates an edit/delete target could not be uniquely
// matched to one record. The flow re-prompts instead of guessing.
var ErrResolution = errors.New("could not resolve expense reference")

var recordIDPattern = regexp.MustCompile(`#(\d+)`)

// resolveReference maps the text of a quoted bot message back to one
// expense id owned by the user. An embedded "#<id>" wins outright; only
// when no id is present does exact five-field matching run, and that must
// match exactly one record.
func (e *Engine) resolveReference(ctx context.Context, userID, refText string) (int64, error) {
	if m := recordIDPattern.FindStringSubmatch(refText); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad id %q", ErrResolution, m[1])
		}
		expense, err := e.expenses.GetByID(ctx, id, userID)
		if err != nil {
			return 0, fmt.Errorf("failed to look up expense %d: %w", id, err)
		}
		if expense == nil {
			return 0, fmt.Errorf("%w: expense #%d not found", ErrResolution, id)
		}
		return id, nil
	}

	draft, err := parseSummaryFields(refText)
	if err != nil {
		return 0, err
	}

	ids, err := e.expenses.FindByFields(ctx, userID, draft)
	if err != nil {
		return 0, fmt.Errorf("field match lookup failed: %w", err)
	}
	switch len(ids) {
	case 1:
		return ids[0], nil
	case 0:
		return 0, fmt.Errorf("%w: no matching record", ErrResolution)
	default:
		return 0, fmt.Errorf("%w: %d records match", ErrResolution, len(ids))
	}
}

// parseSummaryFields reads the five labelled fields back out of a bot
// summary message. All five must be present for field matching to run.
func parseSummaryFields(text string) (*entity.ExpenseDraft, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(trimLeadingSymbols(name))
		value = strings.TrimSpace(value)
		switch name {
		case "Currency", "Amount", "Category", "Description", "Date":
			fields[name] = value
		}
	}

	for _, name := range []string{"Currency", "Amount", "Category", "Description", "Date"} {
		if fields[name] == "" {
			return nil, fmt.Errorf("%w: missing %s field", ErrResolution, strings.ToLower(name))
		}
	}

	amount, err := decimal.NewFromString(fields["Amount"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrResolution, fields["Amount"])
	}
	date, err := time.Parse(entity.DateLayout, fields["Date"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrResolution, fields["Date"])
	}

	return &entity.ExpenseDraft{
		Currency:    fields["Currency"],
		Amount:      amount,
		Category:    fields["Category"],
		Description: fields["Description"],
		Date:        date,
	}, nil
}

// trimLeadingSymbols strips emoji and markup in front of a field label.
func trimLeadingSymbols(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return r > 0x7F || r == '*' || r == '_' || r == ' '
	})
}

package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeModel struct {
	triage       *TriageResult
	queries      []string
	generateCall int
	answer       string
}

func (m *fakeModel) Triage(ctx context.Context, req Request) (*TriageResult, error) {
	if m.triage != nil {
		return m.triage, nil
	}
	return &TriageResult{NeedsLookup: true}, nil
}

func (m *fakeModel) GenerateQuery(ctx context.Context, req Request, history []Message) (string, error) {
	query := m.queries[m.generateCall%len(m.queries)]
	m.generateCall++
	return query, nil
}

func (m *fakeModel) CheckQuery(ctx context.Context, query string) (string, error) {
	return query, nil
}

func (m *fakeModel) Analyze(ctx context.Context, req Request, history []Message) (string, error) {
	return m.answer, nil
}

type fakeExecutor struct {
	failures int
	calls    int
	rows     string
}

func (e *fakeExecutor) Execute(ctx context.Context, query, userID string) (string, error) {
	e.calls++
	if e.calls <= e.failures {
		return "", fmt.Errorf("no such column: pricee")
	}
	return e.rows, nil
}

func TestAnswer_HappyPath(t *testing.T) {
	model := &fakeModel{
		queries: []string{"SELECT 1"},
		answer:  "You spent SGD 42.00 on food.",
	}
	executor := &fakeExecutor{rows: `[{"total":"42.00"}]`}
	a := New(model, executor, 3, zap.NewNop())

	var notices []string
	answer, err := a.Answer(context.Background(), Request{UserID: "u-1", Question: "food spend?"},
		func(text string) { notices = append(notices, text) })

	assert.NoError(t, err)
	assert.Equal(t, "You spent SGD 42.00 on food.", answer)
	assert.Equal(t, 1, executor.calls)
	assert.NotEmpty(t, notices)
}

func TestAnswer_TriageShortCircuit(t *testing.T) {
	model := &fakeModel{
		triage: &TriageResult{NeedsLookup: false, Answer: "Hello! Ask me about your spending."},
	}
	executor := &fakeExecutor{}
	a := New(model, executor, 3, zap.NewNop())

	answer, err := a.Answer(context.Background(), Request{UserID: "u-1", Question: "hi"}, nil)

	assert.NoError(t, err)
	assert.Equal(t, "Hello! Ask me about your spending.", answer)
	assert.Zero(t, executor.calls)
}

func TestAnswer_RetriesThenSucceeds(t *testing.T) {
	model := &fakeModel{
		queries: []string{"SELECT pricee", "SELECT price"},
		answer:  "Found it.",
	}
	executor := &fakeExecutor{failures: 1, rows: `[]`}
	a := New(model, executor, 3, zap.NewNop())

	answer, err := a.Answer(context.Background(), Request{UserID: "u-1", Question: "total?"}, nil)

	assert.NoError(t, err)
	assert.Equal(t, "Found it.", answer)
	assert.Equal(t, 2, executor.calls)
	assert.Equal(t, 2, model.generateCall)
}

func TestAnswer_RetriesExhausted(t *testing.T) {
	model := &fakeModel{queries: []string{"SELECT broken"}}
	executor := &fakeExecutor{failures: 100}
	a := New(model, executor, 3, zap.NewNop())

	_, err := a.Answer(context.Background(), Request{UserID: "u-1", Question: "total?"}, nil)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, executor.calls)
}

func TestAnswer_EmptyAnswerIsAnError(t *testing.T) {
	model := &fakeModel{queries: []string{"SELECT 1"}, answer: ""}
	executor := &fakeExecutor{rows: `[]`}
	a := New(model, executor, 3, zap.NewNop())

	_, err := a.Answer(context.Background(), Request{UserID: "u-1", Question: "total?"}, nil)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestAnswer_CancelledContext(t *testing.T) {
	model := &fakeModel{queries: []string{"SELECT 1"}, answer: "x"}
	a := New(model, &fakeExecutor{}, 3, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Answer(ctx, Request{UserID: "u-1", Question: "total?"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

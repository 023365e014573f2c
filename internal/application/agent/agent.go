// Package agent implements the bounded query-answering pipeline invoked
// for free-text analytics questions. The pipeline is a small directed
// graph of typed nodes: triage -> generate -> check -> execute, with a
// conditional edge after execution that either analyzes the result set or
// loops back to generation when the query failed, up to a retry ceiling.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"go.uber.org/zap"
)

var (
	// ErrRetriesExhausted is returned when the executor kept failing and
	// the retry ceiling was reached without a clean execution.
	ErrRetriesExhausted = errors.New("query retries exhausted")

	// ErrNoAnswer is returned when the model produced no final answer.
	ErrNoAnswer = errors.New("no final answer produced")
)

// node identifies one step of the pipeline graph.
type node int

const (
	nodeTriage node = iota
	nodeGenerate
	nodeCheck
	nodeExecute
	nodeAnalyze
	nodeDone
)

// Message is one exchange in the agent's per-invocation history. The
// history lives only for one Answer call and is discarded afterwards.
type Message struct {
	Role    string // "user", "assistant" or "tool"
	Content string
}

// Request carries everything one invocation needs.
type Request struct {
	UserID     string
	Question   string
	LastAnswer string   // previous distilled answer, empty if none
	Categories []string // categories known to exist for this user
}

// TriageResult is the routing decision of the first node.
type TriageResult struct {
	NeedsLookup bool
	// Answer holds the direct reply when no lookup is needed.
	Answer string
}

// Model is the language-model collaborator behind the pipeline nodes.
type Model interface {
	// Triage decides whether the question needs a fresh data lookup.
	Triage(ctx context.Context, req Request) (*TriageResult, error)

	// GenerateQuery synthesizes a read-only query for the question,
	// taking prior execution errors in the history into account.
	GenerateQuery(ctx context.Context, req Request, history []Message) (string, error)

	// CheckQuery inspects a query for common defects and returns the
	// (possibly rewritten) query. It never executes anything.
	CheckQuery(ctx context.Context, query string) (string, error)

	// Analyze produces the final user-facing answer from the result set.
	Analyze(ctx context.Context, req Request, history []Message) (string, error)
}

// Agent runs the pipeline.
type Agent struct {
	model      Model
	executor   port.QueryExecutor
	maxRetries int
	logger     *zap.Logger
}

// New creates an agent with the given retry ceiling.
func New(model Model, executor port.QueryExecutor, maxRetries int, logger *zap.Logger) *Agent {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Agent{
		model:      model,
		executor:   executor,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Answer walks the pipeline graph for one question and returns the final
// answer text. notify receives short progress notices; it may be nil and
// notices may be dropped freely by the caller.
func (a *Agent) Answer(ctx context.Context, req Request, notify func(string)) (string, error) {
	emit := func(text string) {
		if notify != nil {
			notify(text)
		}
	}

	history := []Message{{Role: "user", Content: req.Question}}
	attempts := 0
	current := nodeTriage
	var query string

	for current != nodeDone {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		switch current {
		case nodeTriage:
			emit("🔍 Checking your question...")
			triage, err := a.model.Triage(ctx, req)
			if err != nil {
				return "", fmt.Errorf("triage failed: %w", err)
			}
			if !triage.NeedsLookup {
				if triage.Answer == "" {
					return "", ErrNoAnswer
				}
				a.logger.Debug("Question answered without lookup",
					zap.String("user_id", req.UserID))
				return triage.Answer, nil
			}
			current = nodeGenerate

		case nodeGenerate:
			emit("📝 Generating appropriate database query...")
			q, err := a.model.GenerateQuery(ctx, req, history)
			if err != nil {
				return "", fmt.Errorf("query generation failed: %w", err)
			}
			query = q
			current = nodeCheck

		case nodeCheck:
			emit("🚦 Checking generated query for errors...")
			checked, err := a.model.CheckQuery(ctx, query)
			if err != nil {
				return "", fmt.Errorf("query check failed: %w", err)
			}
			if checked != "" {
				query = checked
			}
			current = nodeExecute

		case nodeExecute:
			rows, err := a.executor.Execute(ctx, query, req.UserID)
			if err != nil {
				// Conditional edge: execution error loops back to
				// generation until the retry ceiling is reached.
				attempts++
				a.logger.Warn("Query execution failed",
					zap.String("user_id", req.UserID),
					zap.Int("attempt", attempts),
					zap.Error(err))
				if attempts >= a.maxRetries {
					return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, err)
				}
				history = append(history, Message{
					Role:    "tool",
					Content: fmt.Sprintf("Query error: %v. Rewrite the query and try again.", err),
				})
				current = nodeGenerate
				continue
			}
			history = append(history,
				Message{Role: "assistant", Content: query},
				Message{Role: "tool", Content: rows},
			)
			current = nodeAnalyze

		case nodeAnalyze:
			emit("📊 Analyzing results to provide you an answer...")
			answer, err := a.model.Analyze(ctx, req, history)
			if err != nil {
				return "", fmt.Errorf("result analysis failed: %w", err)
			}
			if answer == "" {
				return "", ErrNoAnswer
			}
			a.logger.Info("Analytics question answered",
				zap.String("user_id", req.UserID),
				zap.Int("attempts", attempts+1))
			return answer, nil
		}
	}

	return "", ErrNoAnswer
}

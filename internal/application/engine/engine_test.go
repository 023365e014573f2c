package engine

import (
	"context"
	"testing"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/agent"
	"github.com/chrxmium/expense-bot/internal/domain/dialog"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAgentModel struct {
	answer string
}

func (m *stubAgentModel) Triage(ctx context.Context, req agent.Request) (*agent.TriageResult, error) {
	return &agent.TriageResult{NeedsLookup: false, Answer: m.answer}, nil
}

func (m *stubAgentModel) GenerateQuery(ctx context.Context, req agent.Request, history []agent.Message) (string, error) {
	return "", nil
}

func (m *stubAgentModel) CheckQuery(ctx context.Context, query string) (string, error) {
	return query, nil
}

func (m *stubAgentModel) Analyze(ctx context.Context, req agent.Request, history []agent.Message) (string, error) {
	return m.answer, nil
}

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, query, userID string) (string, error) {
	return "[]", nil
}

type fixture struct {
	engine    *Engine
	sessions  *memSessions
	users     *memUsers
	expenses  *memExpenses
	whitelist *memWhitelist
	extractor *fakeExtractor
	messenger *fakeMessenger
	exporter  *fakeExporter
}

func coffeeDraft() *entity.ExpenseDraft {
	return &entity.ExpenseDraft{
		Currency:    "SGD",
		Amount:      decimal.RequireFromString("5.00"),
		Category:    "Food",
		Description: "Coffee",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		sessions:  newMemSessions(),
		users:     newMemUsers(),
		expenses:  newMemExpenses(),
		whitelist: newMemWhitelist("alice"),
		extractor: &fakeExtractor{draft: coffeeDraft(), refined: coffeeDraft()},
		messenger: newFakeMessenger(),
		exporter:  &fakeExporter{},
	}
	agentRunner := agent.New(&stubAgentModel{answer: "stub answer"}, stubExecutor{}, 3, zap.NewNop())
	f.engine = New(
		f.sessions,
		f.users,
		f.expenses,
		f.whitelist,
		f.extractor,
		agentRunner,
		f.exporter,
		f.messenger,
		opts,
		zap.NewNop(),
	)
	return f
}

func textEvent(text string) *Event {
	return &Event{
		UpdateID:   1,
		ChatID:     100,
		TelegramID: 42,
		Username:   "alice",
		Kind:       EventMessage,
		Text:       text,
	}
}

func callbackEvent(data string) *Event {
	ev := textEvent("")
	ev.Kind = EventCallback
	ev.CallbackID = "cb-1"
	ev.CallbackData = data
	return ev
}

func (f *fixture) state(t *testing.T) dialog.State {
	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess.State
}

func TestStart_ShowsMenu(t *testing.T) {
	f := newFixture(Options{})

	err := f.engine.HandleEvent(context.Background(), textEvent("/start"))
	require.NoError(t, err)

	assert.Equal(t, dialog.StateIdle, f.state(t))
	assert.Contains(t, f.messenger.lastText(), "What would you like to do?")
}

func TestInsertFlow_RoundTrip(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackInsert)))
	assert.Equal(t, dialog.StateAwaitingExpense, f.state(t))

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("Coffee $5")))
	assert.Equal(t, dialog.StateAwaitingConfirmation, f.state(t))
	assert.Contains(t, f.messenger.lastText(), "Amount: 5.00")
	// No record is written until the user explicitly confirms.
	assert.Zero(t, f.expenses.count())

	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackConfirmYes)))
	assert.Equal(t, 1, f.expenses.count())
	assert.Equal(t, dialog.StateAwaitingExpense, f.state(t))

	recorded, err := f.expenses.GetByID(ctx, 1, "user-42")
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, "Food", recorded.Category)
	assert.Equal(t, "5.00", entity.FormatAmount(recorded.Amount))

	texts := f.messenger.allTexts()
	assert.Contains(t, texts[len(texts)-2], "✅ Recorded expense #1:")
}

func TestInsertFlow_RejectionGoesToRefinement(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackInsert)))
	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("Coffee $5")))

	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackConfirmNo)))
	assert.Equal(t, dialog.StateAwaitingRefinement, f.state(t))
	assert.Zero(t, f.expenses.count())

	refined := coffeeDraft()
	refined.Amount = decimal.RequireFromString("12.50")
	f.extractor.refined = refined

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("the amount was 12.50")))
	assert.Equal(t, dialog.StateAwaitingConfirmation, f.state(t))
	assert.Contains(t, f.messenger.lastText(), "Amount: 12.50")
	assert.Equal(t, 1, f.extractor.refineCalls)
}

func TestRefinement_CurrencyChangeUpdatesPreference(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackInsert)))
	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("Coffee $5")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackConfirmNo)))

	refined := coffeeDraft()
	refined.Currency = "EUR"
	f.extractor.refined = refined

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("that was in euros")))
	assert.Equal(t, "EUR", f.users.currencies["user-42"])
}

func TestDeleteAllFlow(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	_, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackDelete)))
	assert.Equal(t, dialog.StateAwaitingDeleteTarget, f.state(t))

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("all")))
	assert.Equal(t, dialog.StateAwaitingDeleteConfirm, f.state(t))
	// Still there until confirmed.
	assert.Equal(t, 1, f.expenses.count())

	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackConfirmYes)))
	assert.Zero(t, f.expenses.count())
	assert.Equal(t, dialog.StateAwaitingExpense, f.state(t))
}

func TestDeleteFlow_DeclineKeepsRecords(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	_, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackDelete)))
	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("all")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackConfirmNo)))

	assert.Equal(t, 1, f.expenses.count())
	assert.Contains(t, f.messenger.lastText(), "nothing was deleted")
}

func TestEditFlow_ReplyResolvesById(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	id, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	refined := coffeeDraft()
	refined.Description = "Latte"
	f.extractor.refined = refined

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackEdit)))

	ev := textEvent("make it a latte")
	ev.ReplyToText = "✅ Recorded expense #1:\n📈 Currency: SGD\n"
	require.NoError(t, f.engine.HandleEvent(ctx, ev))
	assert.Equal(t, dialog.StateAwaitingConfirmation, f.state(t))

	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackConfirmYes)))

	updated, err := f.expenses.GetByID(ctx, id, "user-42")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Latte", updated.Description)
	// Edit updated in place rather than inserting a second record.
	assert.Equal(t, 1, f.expenses.count())
}

func TestQuit_EndsSession(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/quit")))

	sess, err := f.sessions.Get(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Contains(t, f.messenger.allTexts()[len(f.messenger.allTexts())-1], "Goodbye")
}

func TestIdle_UnknownTextRedirectsToStart(t *testing.T) {
	f := newFixture(Options{})

	err := f.engine.HandleEvent(context.Background(), textEvent("hello there"))
	require.NoError(t, err)
	assert.Contains(t, f.messenger.lastText(), "type /start")
}

func TestRejectsMissingUsername(t *testing.T) {
	f := newFixture(Options{})

	ev := textEvent("/start")
	ev.Username = ""
	err := f.engine.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Contains(t, f.messenger.lastText(), "public Telegram username")

	sess, err := f.sessions.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestWhitelist_RejectsUnknownUser(t *testing.T) {
	f := newFixture(Options{RequireWhitelist: true})

	ev := textEvent("/start")
	ev.Username = "Mallory"
	err := f.engine.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Contains(t, f.messenger.lastText(), "not authorised")
}

func TestWhitelist_NormalizesUsername(t *testing.T) {
	f := newFixture(Options{RequireWhitelist: true})

	ev := textEvent("/start")
	ev.Username = "@Alice"
	err := f.engine.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Contains(t, f.messenger.lastText(), "What would you like to do?")
}

func TestExport_NoExpenses(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackExport)))

	assert.Equal(t, dialog.StateIdle, f.state(t))
	assert.Contains(t, f.messenger.lastText(), "No expenses found")
}

func TestAnalyse_AnswerKeepsQueryState(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackAnalyse)))
	assert.Equal(t, dialog.StateAwaitingQuery, f.state(t))

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("how much on food?")))
	assert.Equal(t, dialog.StateAwaitingQuery, f.state(t))
	assert.Equal(t, "stub answer", f.messenger.lastText())

	sess, err := f.sessions.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "stub answer", sess.LastAnswer)
}

func TestParseFailure_StaysInExpenseState(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackInsert)))

	bad := coffeeDraft()
	bad.Category = ""
	f.extractor.draft = bad

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("gibberish")))
	assert.Equal(t, dialog.StateAwaitingExpense, f.state(t))
	assert.Contains(t, f.messenger.lastText(), "couldn't make out")
}

func TestEditFlow_ParseFailureReprompts(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	draft := coffeeDraft()
	_, err := f.expenses.Insert(ctx, draft.ToExpense("user-42"))
	require.NoError(t, err)

	require.NoError(t, f.engine.HandleEvent(ctx, textEvent("/start")))
	require.NoError(t, f.engine.HandleEvent(ctx, callbackEvent(callbackEdit)))

	f.extractor.err = entity.ErrUnparseable

	ev := textEvent("asdfgh")
	ev.ReplyToText = "✅ Recorded expense #1:\n📈 Currency: SGD\n"
	require.NoError(t, f.engine.HandleEvent(ctx, ev))

	// The user is told and can reply to the record again.
	assert.Equal(t, dialog.StateAwaitingEditTarget, f.state(t))
	assert.Contains(t, f.messenger.lastText(), "couldn't make out")
}

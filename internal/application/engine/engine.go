// Package engine implements the per-conversation dialogue controller. It
// owns session records, serializes event handling per chat, and drives
// extraction, refinement, CRUD, export and the query-answering agent
// through their ports. No insert/update/delete happens without an explicit
// confirmation state.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/agent"
	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/dialog"
	"github.com/chrxmium/expense-bot/internal/domain/session"
	"go.uber.org/zap"
)

// Options holds conversation behaviour settings.
type Options struct {
	DefaultCurrency  string
	RequireWhitelist bool
	NoticeInterval   time.Duration

	// RenderPDF converts the first page of a PDF receipt to an image
	// and returns its path. Optional; PDF receipts are rejected if nil.
	RenderPDF func(path string) (string, error)
}

// Engine is the dialogue state machine driver.
type Engine struct {
	flow      *dialog.Flow
	sessions  port.SessionRepository
	users     port.UserRepository
	expenses  port.ExpenseRepository
	whitelist port.WhitelistRepository
	extractor port.Extractor
	agent     *agent.Agent
	exporter  port.Exporter
	messenger port.Messenger
	opts      Options
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a dialogue engine.
func New(
	sessions port.SessionRepository,
	users port.UserRepository,
	expenses port.ExpenseRepository,
	whitelist port.WhitelistRepository,
	extractor port.Extractor,
	agentRunner *agent.Agent,
	exporter port.Exporter,
	messenger port.Messenger,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "SGD"
	}
	if opts.NoticeInterval <= 0 {
		opts.NoticeInterval = 1500 * time.Millisecond
	}
	return &Engine{
		flow:      dialog.NewConversationFlow(),
		sessions:  sessions,
		users:     users,
		expenses:  expenses,
		whitelist: whitelist,
		extractor: extractor,
		agent:     agentRunner,
		exporter:  exporter,
		messenger: messenger,
		opts:      opts,
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing handlers for one chat.
// Sessions for different chats run independently and in parallel.
func (e *Engine) sessionLock(chatID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[chatID] = lock
	}
	return lock
}

// HandleEvent processes one deduplicated inbound event end to end.
func (e *Engine) HandleEvent(ctx context.Context, ev *Event) error {
	// A public handle is required before any state is created.
	if strings.TrimSpace(ev.Username) == "" {
		_, err := e.messenger.SendText(ctx, ev.ChatID,
			"⚠️ You need a public Telegram username to use this bot. Set one in your Telegram settings and try again.")
		return err
	}

	if e.opts.RequireWhitelist {
		username := normalizeUsername(ev.Username)
		allowed, err := e.whitelist.IsWhitelisted(ctx, username)
		if err != nil {
			e.logger.Error("Whitelist check failed", zap.String("username", username), zap.Error(err))
			return err
		}
		if !allowed {
			e.logger.Info("Rejected non-whitelisted user", zap.String("username", username))
			_, err := e.messenger.SendText(ctx, ev.ChatID,
				"🚫 Sorry, you are not authorised to use this bot.")
			return err
		}
	}

	lock := e.sessionLock(ev.ChatID)
	lock.Lock()
	defer lock.Unlock()

	// Acknowledge button presses early; failures here are cosmetic.
	if ev.Kind == EventCallback && ev.CallbackID != "" {
		if err := e.messenger.AnswerCallback(ctx, ev.CallbackID); err != nil {
			e.logger.Debug("Failed to answer callback", zap.Error(err))
		}
	}

	user, err := e.users.GetOrCreate(ctx, ev.TelegramID)
	if err != nil {
		e.logger.Error("Failed to resolve user", zap.Int64("telegram_id", ev.TelegramID), zap.Error(err))
		_, _ = e.messenger.SendText(ctx, ev.ChatID, "⚠️ Something went wrong. Please try again.")
		return err
	}

	sess, err := e.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		e.logger.Error("Failed to load session", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		return err
	}
	if sess == nil {
		sess = session.New(ev.ChatID)
	}

	if handled, err := e.handleGlobal(ctx, sess, ev); handled {
		return err
	}

	hctx := &handlerContext{sess: sess, ev: ev, user: user}

	switch sess.State {
	case dialog.StateIdle:
		err = e.handleIdle(ctx, hctx)
	case dialog.StateAwaitingExpense:
		err = e.handleAwaitingExpense(ctx, hctx)
	case dialog.StateAwaitingConfirmation:
		err = e.handleAwaitingConfirmation(ctx, hctx)
	case dialog.StateAwaitingRefinement:
		err = e.handleAwaitingRefinement(ctx, hctx)
	case dialog.StateAwaitingEditTarget:
		err = e.handleAwaitingEditTarget(ctx, hctx)
	case dialog.StateAwaitingDeleteTarget:
		err = e.handleAwaitingDeleteTarget(ctx, hctx)
	case dialog.StateAwaitingDeleteConfirm:
		err = e.handleAwaitingDeleteConfirm(ctx, hctx)
	case dialog.StateAwaitingQuery:
		err = e.handleAwaitingQuery(ctx, hctx)
	default:
		e.logger.Warn("Event in unexpected state",
			zap.Int64("chat_id", ev.ChatID),
			zap.String("state", sess.State.String()))
	}

	if err != nil {
		e.logger.Error("Handler failed",
			zap.Int64("chat_id", ev.ChatID),
			zap.String("state", sess.State.String()),
			zap.Error(err))
	}

	sess.UpdatedAt = time.Now()
	if saveErr := e.sessions.Save(ctx, sess); saveErr != nil {
		e.logger.Error("Failed to save session", zap.Int64("chat_id", ev.ChatID), zap.Error(saveErr))
		if err == nil {
			err = saveErr
		}
	}

	return err
}

// handleGlobal deals with /start and /quit, which are valid in every
// non-terminal state.
func (e *Engine) handleGlobal(ctx context.Context, sess *session.Session, ev *Event) (bool, error) {
	text := strings.TrimSpace(ev.Text)
	wantsQuit := text == "/quit" || (ev.Kind == EventCallback && ev.CallbackData == callbackQuit)
	wantsStart := text == "/start"

	if !wantsQuit && !wantsStart {
		return false, nil
	}

	if wantsQuit {
		if _, err := e.flow.Fire(sess.State, dialog.TriggerQuit); err != nil {
			return true, err
		}
		_, _ = e.messenger.SendText(ctx, ev.ChatID, "Goodbye! Type /start if you need me again. 👋")
		if err := e.sessions.Delete(ctx, ev.ChatID); err != nil {
			e.logger.Error("Failed to delete session", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
			return true, err
		}
		return true, nil
	}

	next, err := e.flow.Fire(sess.State, dialog.TriggerStart)
	if err != nil {
		return true, err
	}
	sess.Reset()
	sess.State = next
	if err := e.showMenu(ctx, ev); err != nil {
		return true, err
	}
	sess.UpdatedAt = time.Now()
	return true, e.sessions.Save(ctx, sess)
}

// transition fires a trigger for the session and advances its state.
func (e *Engine) transition(sess *session.Session, trigger dialog.Trigger) error {
	next, err := e.flow.Fire(sess.State, trigger)
	if err != nil {
		return err
	}
	sess.State = next
	return nil
}

func (e *Engine) showMenu(ctx context.Context, ev *Event) error {
	menu := [][]port.Button{
		{{Label: "📌 Insert Expense", Data: callbackInsert}},
		{{Label: "🔧 Edit Expense", Data: callbackEdit}},
		{{Label: "🗑 Delete Expense", Data: callbackDelete}},
		{{Label: "📊 Export Expenses", Data: callbackExport}},
		{{Label: "🔍 Analyse Expenses", Data: callbackAnalyse}},
		{{Label: "❌ Quit", Data: callbackQuit}},
	}
	greeting := "Hello @" + normalizeUsername(ev.Username) + "! What would you like to do?"
	_, err := e.messenger.SendMenu(ctx, ev.ChatID, greeting, menu)
	return err
}

// normalizeUsername strips a leading @ and lower-cases the handle.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

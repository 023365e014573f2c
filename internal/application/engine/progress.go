package engine

import (
	"context"
	"sync"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"go.uber.org/zap"
)

// progressNotifier forwards agent progress notices to a single status
// message, rate-limiting edits. Notices are best-effort: duplicates and
// updates arriving inside the minimum interval are dropped, and delivery
// failures are logged and swallowed.
type progressNotifier struct {
	messenger   port.Messenger
	chatID      int64
	messageID   int
	minInterval time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	lastText string
	lastEdit time.Time
}

func newProgressNotifier(ctx context.Context, messenger port.Messenger, chatID int64, minInterval time.Duration, logger *zap.Logger) (*progressNotifier, error) {
	messageID, err := messenger.SendText(ctx, chatID, "🔍 Checking your question...")
	if err != nil {
		return nil, err
	}
	return &progressNotifier{
		messenger:   messenger,
		chatID:      chatID,
		messageID:   messageID,
		minInterval: minInterval,
		logger:      logger,
		lastText:    "🔍 Checking your question...",
		lastEdit:    time.Now(),
	}, nil
}

// Notify updates the status message if enough time has passed since the
// previous edit and the text actually changed.
func (n *progressNotifier) Notify(ctx context.Context, text string) {
	n.mu.Lock()
	if text == n.lastText || time.Since(n.lastEdit) < n.minInterval {
		n.mu.Unlock()
		return
	}
	n.lastText = text
	n.lastEdit = time.Now()
	n.mu.Unlock()

	if err := n.messenger.EditText(ctx, n.chatID, n.messageID, text); err != nil {
		n.logger.Debug("Dropping progress notice", zap.Error(err))
	}
}

// Finish replaces the status message with the final text. Unlike interim
// notices this edit is not throttled and failures are returned.
func (n *progressNotifier) Finish(ctx context.Context, text string) error {
	n.mu.Lock()
	n.lastText = text
	n.lastEdit = time.Now()
	n.mu.Unlock()

	return n.messenger.EditText(ctx, n.chatID, n.messageID, text)
}

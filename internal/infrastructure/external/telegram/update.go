package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrxmium/expense-bot/internal/application/engine"
	"go.uber.org/zap"
)

// Update is the subset of the Bot API update payload the bot consumes.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type Message struct {
	MessageID      int         `json:"message_id"`
	From           *TgUser     `json:"from"`
	Chat           Chat        `json:"chat"`
	Text           string      `json:"text"`
	Caption        string      `json:"caption"`
	Photo          []PhotoSize `json:"photo"`
	Document       *Document   `json:"document"`
	ReplyToMessage *Message    `json:"reply_to_message"`
}

type TgUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type Document struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *TgUser  `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// EventHandler consumes one inbound conversation event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *engine.Event) error
}

// Processor turns raw webhook updates into conversation events and
// dispatches them. Duplicate deliveries are dropped before dispatch, so a
// retried webhook never re-runs a handler.
type Processor struct {
	handler EventHandler
	dedup   *dedupSet
	logger  *zap.Logger
}

// NewProcessor creates an update processor.
func NewProcessor(handler EventHandler, dedupCapacity int, logger *zap.Logger) *Processor {
	return &Processor{
		handler: handler,
		dedup:   newDedupSet(dedupCapacity),
		logger:  logger,
	}
}

// Process decodes one webhook payload and hands it to the engine on a
// fresh goroutine so the webhook endpoint can acknowledge immediately.
func (p *Processor) Process(body []byte) error {
	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to decode update: %w", err)
	}

	ev, err := eventFromUpdate(&update)
	if err != nil {
		p.logger.Debug("Ignoring update", zap.Int64("update_id", update.UpdateID), zap.Error(err))
		return nil
	}

	if p.dedup.Seen(update.UpdateID) {
		p.logger.Debug("Dropping duplicate update", zap.Int64("update_id", update.UpdateID))
		return nil
	}

	go func() {
		ctx := context.Background()
		if err := p.handler.HandleEvent(ctx, ev); err != nil {
			p.logger.Error("Event handling failed",
				zap.Int64("update_id", ev.UpdateID),
				zap.Int64("chat_id", ev.ChatID),
				zap.Error(err))
		}
	}()
	return nil
}

// eventFromUpdate maps a Bot API update to a conversation event. Updates
// without a usable message or callback are rejected.
func eventFromUpdate(update *Update) (*engine.Event, error) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil {
			return nil, fmt.Errorf("callback query missing sender or message")
		}
		return &engine.Event{
			UpdateID:     update.UpdateID,
			ChatID:       cb.Message.Chat.ID,
			TelegramID:   cb.From.ID,
			Username:     cb.From.Username,
			MessageID:    cb.Message.MessageID,
			Kind:         engine.EventCallback,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}, nil
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil, fmt.Errorf("update carries no message")
	}

	ev := &engine.Event{
		UpdateID:   update.UpdateID,
		ChatID:     msg.Chat.ID,
		TelegramID: msg.From.ID,
		Username:   msg.From.Username,
		MessageID:  msg.MessageID,
		Kind:       engine.EventMessage,
		Text:       msg.Text,
	}
	if msg.ReplyToMessage != nil {
		ev.ReplyToText = msg.ReplyToMessage.Text
	}

	switch {
	case len(msg.Photo) > 0:
		ev.Kind = engine.EventPhoto
		ev.FileID = largestPhoto(msg.Photo).FileID
		if ev.Text == "" {
			ev.Text = msg.Caption
		}
	case msg.Document != nil:
		ev.Kind = engine.EventDocument
		ev.FileID = msg.Document.FileID
		ev.MimeType = msg.Document.MimeType
		if ev.Text == "" {
			ev.Text = msg.Caption
		}
	}
	return ev, nil
}

// largestPhoto picks the highest resolution rendition Telegram offers.
func largestPhoto(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.FileSize > best.FileSize {
			best = s
		}
	}
	return best
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chrxmium/expense-bot/internal/application/agent"
	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/dialog"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/chrxmium/expense-bot/internal/domain/session"
	"go.uber.org/zap"
)

// handlerContext bundles the per-event values every handler needs.
type handlerContext struct {
	sess *session.Session
	ev   *Event
	user *entity.User
}

var confirmButtons = [][]port.Button{
	{
		{Label: "✅ Yes", Data: callbackConfirmYes},
		{Label: "❌ No", Data: callbackConfirmNo},
	},
}

func (e *Engine) handleIdle(ctx context.Context, h *handlerContext) error {
	if h.ev.Kind != EventCallback {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Unknown command. Please type /start to access the main menu.")
		return err
	}

	switch h.ev.CallbackData {
	case callbackInsert:
		if err := e.transition(h.sess, dialog.TriggerMenuInsert); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Sure, what did you spend on? You can type it out or send me a photo of the receipt. 🧾")
		return err

	case callbackEdit:
		if err := e.transition(h.sess, dialog.TriggerMenuEdit); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Which expense would you like to edit? Reply to the message I sent with those expense details and tell me what to change. 😊")
		return err

	case callbackDelete:
		if err := e.transition(h.sess, dialog.TriggerMenuDelete); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Which expense would you like to delete? Reply to the message with its details, or type \"all\" to delete everything.")
		return err

	case callbackExport:
		if err := e.transition(h.sess, dialog.TriggerMenuExport); err != nil {
			return err
		}
		return e.runExport(ctx, h)

	case callbackAnalyse:
		if err := e.transition(h.sess, dialog.TriggerMenuAnalyse); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"What would you like to know about your expenses? Ask away! 🔍")
		return err

	default:
		e.logger.Debug("Ignoring unknown menu callback", zap.String("data", h.ev.CallbackData))
		return nil
	}
}

func (e *Engine) handleAwaitingExpense(ctx context.Context, h *handlerContext) error {
	draft, err := e.extractFromEvent(ctx, h)
	if err != nil {
		return e.reportExtractionError(ctx, h, err)
	}

	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return e.reportExtractionError(ctx, h, err)
	}

	h.sess.Pending = draft
	if err := e.transition(h.sess, dialog.TriggerExpenseParsed); err != nil {
		return err
	}

	_, err = e.messenger.SendMenu(ctx, h.ev.ChatID,
		formatDraft("Here are the details I got from your input:", draft), confirmButtons)
	return err
}

// extractFromEvent runs the extraction collaborator for text, photo or
// PDF input.
func (e *Engine) extractFromEvent(ctx context.Context, h *handlerContext) (*entity.ExpenseDraft, error) {
	currency := h.user.PreferredCurrency
	if currency == "" {
		currency = e.opts.DefaultCurrency
	}

	switch h.ev.Kind {
	case EventMessage:
		text := strings.TrimSpace(h.ev.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: empty message", entity.ErrUnparseable)
		}
		return e.extractor.ExtractText(ctx, text, currency)

	case EventPhoto, EventDocument:
		path, err := e.messenger.DownloadFile(ctx, h.ev.FileID)
		if err != nil {
			return nil, fmt.Errorf("failed to download receipt: %w", err)
		}
		defer os.Remove(path)

		if h.ev.Kind == EventDocument && isPDF(h.ev.MimeType, path) {
			if e.opts.RenderPDF == nil {
				return nil, fmt.Errorf("%w: PDF receipts are not supported", entity.ErrUnparseable)
			}
			imagePath, err := e.opts.RenderPDF(path)
			if err != nil {
				return nil, fmt.Errorf("failed to render PDF receipt: %w", err)
			}
			defer os.Remove(imagePath)
			return e.extractor.ExtractImage(ctx, imagePath, currency)
		}

		return e.extractor.ExtractImage(ctx, path, currency)

	default:
		return nil, fmt.Errorf("%w: unsupported input", entity.ErrUnparseable)
	}
}

func isPDF(mimeType, path string) bool {
	return mimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// reportExtractionError tells the user what went wrong and keeps the
// conversation in its current state so they can try again.
func (e *Engine) reportExtractionError(ctx context.Context, h *handlerContext, err error) error {
	switch {
	case errors.Is(err, port.ErrRateLimited):
		e.logger.Warn("Extraction rate limited", zap.Int64("chat_id", h.ev.ChatID))
		_, sendErr := e.messenger.SendText(ctx, h.ev.ChatID,
			"⏳ I'm getting too many requests right now. Please wait a moment and try again.")
		return sendErr

	case errors.Is(err, entity.ErrUnparseable):
		e.logger.Info("Extraction produced unusable draft",
			zap.Int64("chat_id", h.ev.ChatID), zap.Error(err))
		if ferr := e.transition(h.sess, dialog.TriggerParseFailed); ferr != nil {
			return ferr
		}
		_, sendErr := e.messenger.SendText(ctx, h.ev.ChatID,
			"⚠️ I couldn't make out the expense details from that. Please try again with the amount and what it was for.")
		return sendErr

	default:
		_, _ = e.messenger.SendText(ctx, h.ev.ChatID,
			"⚠️ There was an issue processing your expense. Please try again.")
		return err
	}
}

func (e *Engine) handleAwaitingConfirmation(ctx context.Context, h *handlerContext) error {
	if h.ev.Kind != EventCallback {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Please use the ✅ Yes / ❌ No buttons above.")
		return err
	}

	switch h.ev.CallbackData {
	case callbackConfirmYes:
		return e.persistPending(ctx, h)

	case callbackConfirmNo:
		if err := e.transition(h.sess, dialog.TriggerConfirmNo); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Sorry I got it wrong! What should the correct details be? Let me know, or type /quit to stop.")
		return err

	default:
		return nil
	}
}

// persistPending writes the confirmed draft: an update when an edit is in
// progress, an insert otherwise. The session transitions only after the
// write succeeded, so a persistence failure leaves the confirmation
// available for another explicit attempt.
func (e *Engine) persistPending(ctx context.Context, h *handlerContext) error {
	if h.sess.Pending == nil {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"⚠️ There is no pending expense to record. Type /start to begin again.")
		return err
	}

	expense := h.sess.Pending.ToExpense(h.user.ID)

	if h.sess.IsEditing() {
		expense.ID = h.sess.EditingExpenseID
		if err := e.expenses.Update(ctx, expense); err != nil {
			e.logger.Error("Failed to update expense",
				zap.Int64("expense_id", expense.ID), zap.Error(err))
			_, _ = e.messenger.SendText(ctx, h.ev.ChatID,
				"⚠️ There was an issue saving your changes. Please try again.")
			return err
		}
	} else {
		id, err := e.expenses.Insert(ctx, expense)
		if err != nil {
			e.logger.Error("Failed to insert expense", zap.Error(err))
			_, _ = e.messenger.SendText(ctx, h.ev.ChatID,
				"⚠️ There was an issue recording your expense. Please try again.")
			return err
		}
		expense.ID = id
	}

	h.sess.ClearPending()
	if err := e.transition(h.sess, dialog.TriggerConfirmYes); err != nil {
		return err
	}

	if _, err := e.messenger.SendText(ctx, h.ev.ChatID, formatRecorded(expense)); err != nil {
		return err
	}
	_, err := e.messenger.SendText(ctx, h.ev.ChatID,
		"Would you like to add another expense? Type it below, or send /start to go back to the main menu.")
	return err
}

func (e *Engine) handleAwaitingRefinement(ctx context.Context, h *handlerContext) error {
	feedback := strings.TrimSpace(h.ev.Text)
	if h.ev.Kind != EventMessage || feedback == "" {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Tell me in words what should change, e.g. \"the amount was 12.50\".")
		return err
	}
	if h.sess.Pending == nil {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"⚠️ There is nothing to refine. Type /start to begin again.")
		return err
	}

	refined, err := e.extractor.Refine(ctx, h.sess.Pending, feedback)
	if err != nil {
		return e.reportExtractionError(ctx, h, err)
	}

	refined.Normalize()
	if err := refined.Validate(); err != nil {
		return e.reportExtractionError(ctx, h, err)
	}

	// A corrected currency becomes the user's preference for future
	// extractions.
	if refined.Currency != h.sess.Pending.Currency {
		if err := e.users.SetPreferredCurrency(ctx, h.user.ID, refined.Currency); err != nil {
			e.logger.Error("Failed to store preferred currency",
				zap.String("user_id", h.user.ID), zap.Error(err))
		}
	}

	h.sess.Pending = refined
	if err := e.transition(h.sess, dialog.TriggerRefined); err != nil {
		return err
	}

	_, err = e.messenger.SendMenu(ctx, h.ev.ChatID,
		formatDraft("Here are the refined details:", refined), confirmButtons)
	return err
}

func (e *Engine) handleAwaitingEditTarget(ctx context.Context, h *handlerContext) error {
	if h.ev.Kind != EventMessage || h.ev.ReplyToText == "" {
		if err := e.transition(h.sess, dialog.TriggerTargetFailed); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Please reply directly to the message with the expense details and tell me what to change.")
		return err
	}

	id, err := e.resolveReference(ctx, h.user.ID, h.ev.ReplyToText)
	if err != nil {
		if !errors.Is(err, ErrResolution) {
			return err
		}
		if ferr := e.transition(h.sess, dialog.TriggerTargetFailed); ferr != nil {
			return ferr
		}
		_, sendErr := e.messenger.SendText(ctx, h.ev.ChatID,
			"🤔 I couldn't match that to one of your expenses. Please reply to the exact message with the expense details.")
		return sendErr
	}

	record, err := e.expenses.GetByID(ctx, id, h.user.ID)
	if err != nil {
		return err
	}
	if record == nil {
		if ferr := e.transition(h.sess, dialog.TriggerTargetFailed); ferr != nil {
			return ferr
		}
		_, sendErr := e.messenger.SendText(ctx, h.ev.ChatID,
			"🤔 That expense no longer exists. Please pick another one.")
		return sendErr
	}

	refined, err := e.extractor.Refine(ctx, record.DraftOf(), strings.TrimSpace(h.ev.Text))
	if err != nil {
		return e.reportExtractionError(ctx, h, err)
	}
	refined.Normalize()
	if err := refined.Validate(); err != nil {
		return e.reportExtractionError(ctx, h, err)
	}

	h.sess.Pending = refined
	h.sess.EditingExpenseID = id
	if err := e.transition(h.sess, dialog.TriggerTargetResolved); err != nil {
		return err
	}

	_, err = e.messenger.SendMenu(ctx, h.ev.ChatID,
		formatDraft(fmt.Sprintf("Here is expense #%d with your changes:", id), refined), confirmButtons)
	return err
}

func (e *Engine) handleAwaitingDeleteTarget(ctx context.Context, h *handlerContext) error {
	text := strings.ToLower(strings.TrimSpace(h.ev.Text))

	if text == "all" {
		h.sess.DeleteTarget = session.DeleteTarget{All: true}
		if err := e.transition(h.sess, dialog.TriggerDeleteAll); err != nil {
			return err
		}
		_, err := e.messenger.SendMenu(ctx, h.ev.ChatID,
			"⚠️ This will delete ALL your recorded expenses. This cannot be undone. Are you sure?", confirmButtons)
		return err
	}

	if h.ev.Kind != EventMessage || h.ev.ReplyToText == "" {
		if err := e.transition(h.sess, dialog.TriggerTargetFailed); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Please reply to the message with the expense details, or type \"all\" to delete everything.")
		return err
	}

	id, err := e.resolveReference(ctx, h.user.ID, h.ev.ReplyToText)
	if err != nil {
		if !errors.Is(err, ErrResolution) {
			return err
		}
		if ferr := e.transition(h.sess, dialog.TriggerTargetFailed); ferr != nil {
			return ferr
		}
		_, sendErr := e.messenger.SendText(ctx, h.ev.ChatID,
			"🤔 I couldn't match that to one of your expenses. Please reply to the exact message with the expense details.")
		return sendErr
	}

	record, err := e.expenses.GetByID(ctx, id, h.user.ID)
	if err != nil {
		return err
	}
	if record == nil {
		if ferr := e.transition(h.sess, dialog.TriggerTargetFailed); ferr != nil {
			return ferr
		}
		_, sendErr := e.messenger.SendText(ctx, h.ev.ChatID,
			"🤔 That expense no longer exists. Please pick another one.")
		return sendErr
	}

	h.sess.DeleteTarget = session.DeleteTarget{ExpenseID: id}
	if err := e.transition(h.sess, dialog.TriggerTargetResolved); err != nil {
		return err
	}

	prompt := "Delete this expense?\n" + formatRecorded(record)
	_, err = e.messenger.SendMenu(ctx, h.ev.ChatID, prompt, confirmButtons)
	return err
}

func (e *Engine) handleAwaitingDeleteConfirm(ctx context.Context, h *handlerContext) error {
	if h.ev.Kind != EventCallback {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Please use the ✅ Yes / ❌ No buttons above.")
		return err
	}

	switch h.ev.CallbackData {
	case callbackConfirmYes:
		target := h.sess.DeleteTarget
		if !target.IsSet() {
			_, err := e.messenger.SendText(ctx, h.ev.ChatID,
				"⚠️ There is nothing pending deletion. Type /start to begin again.")
			return err
		}

		var notice string
		if target.All {
			count, err := e.expenses.DeleteAll(ctx, h.user.ID)
			if err != nil {
				e.logger.Error("Failed to delete all expenses",
					zap.String("user_id", h.user.ID), zap.Error(err))
				_, _ = e.messenger.SendText(ctx, h.ev.ChatID,
					"⚠️ There was an issue deleting your expenses. Please try again.")
				return err
			}
			notice = fmt.Sprintf("🗑 Deleted %d expense(s). You're starting fresh!", count)
		} else {
			deleted, err := e.expenses.Delete(ctx, target.ExpenseID, h.user.ID)
			if err != nil {
				e.logger.Error("Failed to delete expense",
					zap.Int64("expense_id", target.ExpenseID), zap.Error(err))
				_, _ = e.messenger.SendText(ctx, h.ev.ChatID,
					"⚠️ There was an issue deleting that expense. Please try again.")
				return err
			}
			if deleted {
				notice = fmt.Sprintf("🗑 Expense #%d deleted.", target.ExpenseID)
			} else {
				notice = fmt.Sprintf("🤔 Expense #%d was already gone.", target.ExpenseID)
			}
		}

		h.sess.ClearPending()
		if err := e.transition(h.sess, dialog.TriggerConfirmYes); err != nil {
			return err
		}
		if _, err := e.messenger.SendText(ctx, h.ev.ChatID, notice); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Would you like to add another expense? Type it below, or send /start for the main menu.")
		return err

	case callbackConfirmNo:
		h.sess.ClearPending()
		if err := e.transition(h.sess, dialog.TriggerConfirmNo); err != nil {
			return err
		}
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Okay, nothing was deleted. Type an expense to record it, or /start for the main menu.")
		return err

	default:
		return nil
	}
}

func (e *Engine) handleAwaitingQuery(ctx context.Context, h *handlerContext) error {
	question := strings.TrimSpace(h.ev.Text)
	if h.ev.Kind != EventMessage || question == "" {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID,
			"Ask me anything about your expenses, e.g. \"how much did I spend on groceries last month?\"")
		return err
	}

	categories, err := e.expenses.ListCategories(ctx, h.user.ID)
	if err != nil {
		e.logger.Error("Failed to list categories", zap.String("user_id", h.user.ID), zap.Error(err))
		categories = nil
	}

	notifier, err := newProgressNotifier(ctx, e.messenger, h.ev.ChatID, e.opts.NoticeInterval, e.logger)
	if err != nil {
		return err
	}

	answer, err := e.agent.Answer(ctx, agent.Request{
		UserID:     h.user.ID,
		Question:   question,
		LastAnswer: h.sess.LastAnswer,
		Categories: categories,
	}, func(text string) {
		notifier.Notify(ctx, text)
	})

	switch {
	case err == nil:
		h.sess.LastAnswer = answer
		if ferr := e.transition(h.sess, dialog.TriggerQueryHandled); ferr != nil {
			return ferr
		}
		// Final answer delivery failures are surfaced, unlike notices.
		return notifier.Finish(ctx, answer)

	case errors.Is(err, port.ErrRateLimited):
		e.logger.Warn("Agent rate limited", zap.Int64("chat_id", h.ev.ChatID))
		return notifier.Finish(ctx,
			"⏳ I'm getting too many requests right now. Please wait a moment and ask again.")

	default:
		e.logger.Error("Agent failed to answer", zap.Int64("chat_id", h.ev.ChatID), zap.Error(err))
		// The session stays usable for another question.
		return notifier.Finish(ctx,
			"😔 Sorry, I couldn't work that one out. Please try asking again, or type /start to return to the main menu.")
	}
}

// runExport sends the user's expense file, or a notice when there is
// nothing to export.
func (e *Engine) runExport(ctx context.Context, h *handlerContext) error {
	path, err := e.exporter.Export(ctx, h.user.ID, normalizeUsername(h.ev.Username))
	if err != nil {
		e.logger.Error("Export failed", zap.String("user_id", h.user.ID), zap.Error(err))
		_, _ = e.messenger.SendText(ctx, h.ev.ChatID,
			"⚠️ There was an issue exporting your expenses. Please try again.")
		return err
	}
	if path == "" {
		_, err := e.messenger.SendText(ctx, h.ev.ChatID, "No expenses found to export 😔")
		return err
	}
	// Remove the file after sending to protect the user's privacy.
	defer os.Remove(path)

	return e.messenger.SendDocument(ctx, h.ev.ChatID, path,
		"Sure, here's a list of your expenses 📊")
}

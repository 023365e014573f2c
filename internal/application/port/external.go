package port

import (
	"context"
	"errors"

	"github.com/chrxmium/expense-bot/internal/domain/entity"
)

// ErrRateLimited is returned by model-backed collaborators when the
// upstream service signals throttling. It is surfaced to the user as a
// distinct retry-later message and never retried automatically.
var ErrRateLimited = errors.New("model service rate limited")

// Extractor turns free-form input into a structured expense draft.
type Extractor interface {
	// ExtractText parses expense details from plain text.
	ExtractText(ctx context.Context, text, preferredCurrency string) (*entity.ExpenseDraft, error)

	// ExtractImage parses expense details from a receipt image on disk.
	ExtractImage(ctx context.Context, imagePath, preferredCurrency string) (*entity.ExpenseDraft, error)

	// Refine corrects a previous draft using user feedback.
	Refine(ctx context.Context, previous *entity.ExpenseDraft, feedback string) (*entity.ExpenseDraft, error)
}

// QueryExecutor runs a validated read-only query scoped to one user's
// records. The result is a JSON-encoded row set; execution failures are
// returned as errors so the agent can route them back into re-synthesis.
type QueryExecutor interface {
	Execute(ctx context.Context, query, userID string) (string, error)
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendMenu(ctx context.Context, chatID int64, text string, buttons [][]Button) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendDocument(ctx context.Context, chatID int64, filePath, caption string) error
	AnswerCallback(ctx context.Context, callbackID string) error

	// DownloadFile fetches a transport-hosted file (receipt photo or PDF)
	// to local disk and returns its path.
	DownloadFile(ctx context.Context, fileID string) (string, error)
}

// Exporter writes one user's expenses to a file and returns its path,
// or an empty path when the user has no expenses.
type Exporter interface {
	Export(ctx context.Context, userID, label string) (string, error)
}

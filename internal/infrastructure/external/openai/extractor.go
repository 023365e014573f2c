package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Extractor implements port.Extractor using OpenAI chat completions with
// JSON-mode responses.
type Extractor struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewExtractor creates a new OpenAI-backed extractor.
func NewExtractor(apiKey, model string, timeout time.Duration, prompts *PromptConfig, logger *zap.Logger) *Extractor {
	return &Extractor{
		client:  newClient(apiKey, timeout),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

// newClient builds an API client whose HTTP transport enforces the
// configured per-call timeout.
func newClient(apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// draftPayload is the JSON shape the extraction prompts ask the model for.
type draftPayload struct {
	Currency    string          `json:"currency"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

type extractionData struct {
	Text     string
	Currency string
	Today    string
}

// ExtractText parses expense details from free-form text.
func (e *Extractor) ExtractText(ctx context.Context, text, preferredCurrency string) (*entity.ExpenseDraft, error) {
	section := e.prompts.Extraction
	prompt, err := renderTemplate(section.UserTemplate, extractionData{
		Text:     text,
		Currency: preferredCurrency,
		Today:    time.Now().Format(entity.DateLayout),
	})
	if err != nil {
		return nil, err
	}

	content, err := e.complete(ctx, section, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: section.System},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	return e.toDraft(content)
}

// ExtractImage parses expense details from a receipt image on disk.
func (e *Extractor) ExtractImage(ctx context.Context, imagePath, preferredCurrency string) (*entity.ExpenseDraft, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	section := e.prompts.ImageExtraction
	prompt, err := renderTemplate(section.UserTemplate, extractionData{
		Currency: preferredCurrency,
		Today:    time.Now().Format(entity.DateLayout),
	})
	if err != nil {
		return nil, err
	}

	content, err := e.complete(ctx, section, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: section.System},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: prompt,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData)),
						Detail: openai.ImageURLDetailHigh,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return e.toDraft(content)
}

type refinementData struct {
	Previous string
	Feedback string
	Today    string
}

// Refine corrects a previous draft using user feedback.
func (e *Extractor) Refine(ctx context.Context, previous *entity.ExpenseDraft, feedback string) (*entity.ExpenseDraft, error) {
	previousJSON, err := json.Marshal(draftPayload{
		Currency:    previous.Currency,
		Price:       previous.Amount,
		Category:    previous.Category,
		Description: previous.Description,
		Date:        previous.Date.Format(entity.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode previous draft: %w", err)
	}

	section := e.prompts.Refinement
	prompt, err := renderTemplate(section.UserTemplate, refinementData{
		Previous: string(previousJSON),
		Feedback: feedback,
		Today:    time.Now().Format(entity.DateLayout),
	})
	if err != nil {
		return nil, err
	}

	content, err := e.complete(ctx, section, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: section.System},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	return e.toDraft(content)
}

// complete performs one JSON-mode chat completion.
func (e *Extractor) complete(ctx context.Context, section PromptSection, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: section.Temperature,
		MaxTokens:   section.MaxTokens,
		Messages:    messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", mapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// toDraft decodes the model's JSON payload into a draft. Malformed
// payloads are reported as unparseable rather than internal errors so the
// conversation can re-prompt.
func (e *Extractor) toDraft(content string) (*entity.ExpenseDraft, error) {
	var payload draftPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		e.logger.Warn("Failed to parse extraction payload",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("%w: bad extraction payload", entity.ErrUnparseable)
	}

	draft := &entity.ExpenseDraft{
		Currency:    payload.Currency,
		Amount:      payload.Price,
		Category:    payload.Category,
		Description: payload.Description,
	}
	if payload.Date != "" {
		date, err := time.Parse(entity.DateLayout, payload.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", entity.ErrUnparseable, payload.Date)
		}
		draft.Date = date
	}
	return draft, nil
}

// mapAPIError translates upstream throttling into the shared sentinel.
func mapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", port.ErrRateLimited, err)
	}
	return fmt.Errorf("OpenAI API call failed: %w", err)
}

var _ port.Extractor = (*Extractor)(nil)

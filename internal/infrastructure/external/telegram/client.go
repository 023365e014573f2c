package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"go.uber.org/zap"
)

const apiBase = "https://api.telegram.org"

// Config holds Telegram Bot API client configuration.
type Config struct {
	BotToken    string
	APITimeout  time.Duration
	DownloadDir string
}

// Client is a thin Telegram Bot API client implementing port.Messenger.
type Client struct {
	token       string
	httpClient  *http.Client
	downloadDir string
	logger      *zap.Logger
}

// NewClient creates a new Telegram client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		token:       cfg.BotToken,
		httpClient:  &http.Client{Timeout: timeout},
		downloadDir: cfg.DownloadDir,
		logger:      logger,
	}
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// call performs one Bot API method call with a JSON body.
func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s failed: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

type sentMessage struct {
	MessageID int `json:"message_id"`
}

// SendText sends a plain text message and returns its message id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	var msg sentMessage
	err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendMenu sends a text message with an inline keyboard.
func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, buttons [][]port.Button) (int, error) {
	keyboard := make([][]map[string]string, 0, len(buttons))
	for _, row := range buttons {
		kbRow := make([]map[string]string, 0, len(row))
		for _, b := range row {
			kbRow = append(kbRow, map[string]string{
				"text":          b.Label,
				"callback_data": b.Data,
			})
		}
		keyboard = append(keyboard, kbRow)
	}

	var msg sentMessage
	err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
		"reply_markup": map[string]interface{}{
			"inline_keyboard": keyboard,
		},
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditText replaces the text of a previously sent message.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	return c.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// DeleteMessage removes a previously sent message.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// AnswerCallback acknowledges an inline keyboard button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]interface{}{
		"callback_query_id": callbackID,
	}, nil)
}

// SendDocument uploads and sends a local file.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filePath, caption string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendDocument", apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to build sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendDocument request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode sendDocument response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("sendDocument failed: %s (code %d)", envelope.Description, envelope.ErrorCode)
	}
	return nil
}

type fileInfo struct {
	FilePath string `json:"file_path"`
}

// DownloadFile fetches a transport-hosted file to the download directory
// and returns its local path. The caller removes the file when done.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (string, error) {
	var info fileInfo
	if err := c.call(ctx, "getFile", map[string]interface{}{"file_id": fileID}, &info); err != nil {
		return "", err
	}
	if info.FilePath == "" {
		return "", fmt.Errorf("getFile returned no path for %s", fileID)
	}

	if err := os.MkdirAll(c.downloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", apiBase, c.token, info.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("file download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file download failed with status %d", resp.StatusCode)
	}

	localPath := filepath.Join(c.downloadDir, filepath.Base(info.FilePath))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write local file: %w", err)
	}

	c.logger.Debug("Downloaded file",
		zap.String("file_id", fileID),
		zap.String("path", localPath))
	return localPath, nil
}

// Verify interface compliance
var _ port.Messenger = (*Client)(nil)

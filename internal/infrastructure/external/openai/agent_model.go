package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chrxmium/expense-bot/internal/application/agent"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// AgentModel implements agent.Model on top of OpenAI chat completions.
type AgentModel struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewAgentModel creates the language-model collaborator for the
// query-answering pipeline.
func NewAgentModel(apiKey, model string, timeout time.Duration, prompts *PromptConfig, logger *zap.Logger) *AgentModel {
	return &AgentModel{
		client:  newClient(apiKey, timeout),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

type agentPromptData struct {
	Question   string
	UserID     string
	Categories string
	LastAnswer string
	Today      string
	Weekday    string
}

func (m *AgentModel) promptData(req agent.Request) agentPromptData {
	now := time.Now()
	return agentPromptData{
		Question:   req.Question,
		UserID:     req.UserID,
		Categories: strings.Join(req.Categories, ", "),
		LastAnswer: req.LastAnswer,
		Today:      now.Format("2006-01-02"),
		Weekday:    now.Weekday().String(),
	}
}

type triagePayload struct {
	NeedsLookup bool   `json:"needs_lookup"`
	Answer      string `json:"answer"`
}

// Triage decides whether the question needs a fresh data lookup.
func (m *AgentModel) Triage(ctx context.Context, req agent.Request) (*agent.TriageResult, error) {
	section := m.prompts.Triage
	prompt, err := renderTemplate(section.UserTemplate, m.promptData(req))
	if err != nil {
		return nil, err
	}

	content, err := m.complete(ctx, section, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: section.System},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, true)
	if err != nil {
		return nil, err
	}

	var payload triagePayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		m.logger.Warn("Failed to parse triage payload",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse triage response: %w", err)
	}
	return &agent.TriageResult{NeedsLookup: payload.NeedsLookup, Answer: payload.Answer}, nil
}

// GenerateQuery synthesizes a read-only query for the question. Prior
// execution errors arrive through the history and steer the rewrite.
func (m *AgentModel) GenerateQuery(ctx context.Context, req agent.Request, history []agent.Message) (string, error) {
	section := m.prompts.QueryGen
	system, err := renderTemplate(section.System, m.promptData(req))
	if err != nil {
		return "", err
	}

	messages := append([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}, toChatMessages(history)...)

	content, err := m.complete(ctx, section, messages, false)
	if err != nil {
		return "", err
	}
	return stripCodeFence(content), nil
}

// CheckQuery inspects a query for common defects and returns the possibly
// rewritten query. It never executes anything.
func (m *AgentModel) CheckQuery(ctx context.Context, query string) (string, error) {
	section := m.prompts.QueryCheck
	content, err := m.complete(ctx, section, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: section.System},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}, false)
	if err != nil {
		return "", err
	}
	return stripCodeFence(content), nil
}

// Analyze produces the final user-facing answer from the executed rows.
func (m *AgentModel) Analyze(ctx context.Context, req agent.Request, history []agent.Message) (string, error) {
	section := m.prompts.Analyze
	system, err := renderTemplate(section.System, m.promptData(req))
	if err != nil {
		return "", err
	}

	messages := append([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}, toChatMessages(history)...)

	content, err := m.complete(ctx, section, messages, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (m *AgentModel) complete(ctx context.Context, section PromptSection, messages []openai.ChatCompletionMessage, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: section.Temperature,
		MaxTokens:   section.MaxTokens,
		Messages:    messages,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// toChatMessages maps agent history onto chat roles. Tool messages carry
// execution results or errors and are presented as user turns since the
// pipeline does not use native tool calling.
func toChatMessages(history []agent.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}

// stripCodeFence unwraps ```sql ... ``` style fences the model sometimes
// adds despite instructions.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 && !strings.ContainsAny(trimmed[:idx], " \t(") {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

var _ agent.Model = (*AgentModel)(nil)

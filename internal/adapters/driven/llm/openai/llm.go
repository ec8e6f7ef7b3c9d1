// Package openai provides a chat model adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure ChatModel implements the interface.
var _ driven.ChatModel = (*ChatModel)(nil)

// Default configuration values.
const (
	DefaultModel   = domain.DefaultLLMModel
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI chat model.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API base URL for compatible services.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// ChatModel runs chat completions with function tools.
type ChatModel struct {
	client *openai.Client
	model  string
}

// NewChatModel creates a new OpenAI chat model.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &ChatModel{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete sends the conversation and returns the model's next message.
// A nil tools slice offers no tools.
func (m *ChatModel) Complete(
	ctx context.Context, messages []domain.Message, tools []domain.ToolSpec,
) (*domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:    m.model,
		Messages: toOpenAIMessages(messages),
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("openai: %w: %w", domain.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}

	choice := resp.Choices[0]
	return &domain.Completion{
		Message:      fromOpenAIMessage(choice.Message),
		FinishReason: string(choice.FinishReason),
	}, nil
}

// ModelName returns the model name.
func (m *ChatModel) ModelName() string {
	return m.model
}

// Ping checks that the model exists and the key is accepted.
func (m *ChatModel) Ping(ctx context.Context) error {
	if _, err := m.client.GetModel(ctx, m.model); err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	return nil
}

// Close releases resources. The HTTP client needs no cleanup.
func (m *ChatModel) Close() error {
	return nil
}

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		om := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out[i] = om
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) domain.Message {
	out := domain.Message{
		Role:    domain.MessageRole(msg.Role),
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

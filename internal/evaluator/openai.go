package evaluator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	client openai.Client
	model  string
	opts   []option.RequestOption
}

// OpenAIOption configures the client
type OpenAIOption func(*OpenAIClient)

// WithBaseURL points the client at another compatible endpoint
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		if baseURL != "" {
			c.opts = append(c.opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.opts = append(c.opts, option.WithHTTPClient(client))
	}
}

// WithMaxRetries overrides how often failed requests are retried
func WithMaxRetries(n int) OpenAIOption {
	return func(c *OpenAIClient) {
		c.opts = append(c.opts, option.WithMaxRetries(n))
	}
}

// NewOpenAIClient creates a chat completions client
func NewOpenAIClient(apiKey, model string, timeout time.Duration, opts ...OpenAIOption) *OpenAIClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	c := &OpenAIClient{
		model: model,
		opts: []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.client = openai.NewClient(c.opts...)
	return c
}

// Complete sends the conversation with the system prompt as the first message
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("chat completions error: status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	return &Completion{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

package evaluator

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client *genai.Client
	model  string
}

// NewVertexAIClient creates a client for projectID in location (default us-central1)
func NewVertexAIClient(ctx context.Context, projectID, location, model string) (*VertexAIClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex ai project id is required")
	}
	if location == "" {
		location = "us-central1"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexAIClient{client: client, model: model}, nil
}

// Complete replays all but the last message as chat history and sends the last one.
// The last message must come from the user.
func (v *VertexAIClient) Complete(ctx context.Context, req *Request) (*Completion, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != RoleUser {
		return nil, fmt.Errorf("last message must be from the user, got %s", last.Role)
	}

	model := v.client.GenerativeModel(v.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	cs := model.StartChat()
	for _, m := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	completion := &Completion{Text: text}
	if resp.UsageMetadata != nil {
		completion.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return completion, nil
}

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}

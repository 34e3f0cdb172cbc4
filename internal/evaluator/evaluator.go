package evaluator

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("evaluator returned no content")

// Role is the author of a chat message as the model sees it
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to the model
type Message struct {
	Role    Role
	Content string
}

// Request is a single text-completion call
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption of a call
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Completion is the model's reply
type Completion struct {
	Text  string
	Usage Usage
}

// Evaluator is the external text-generation collaborator
type Evaluator interface {
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

// Func adapts a function to the Evaluator interface
type Func func(ctx context.Context, req *Request) (*Completion, error)

// Complete calls f
func (f Func) Complete(ctx context.Context, req *Request) (*Completion, error) {
	return f(ctx, req)
}

// CleanJSON strips markdown code fences around a JSON reply
func CleanJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ExtractJSONObject returns the text between the first '{' and the last '}'
func ExtractJSONObject(text string) (string, bool) {
	text = CleanJSON(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

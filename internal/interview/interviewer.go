package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terra-clan/interview-engine/internal/evaluator"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/quota"
)

const (
	// OpeningInstruction asks the model for the first question of a conversation
	OpeningInstruction = "Begin the behavioral interview by asking your first question about this scenario."

	// DefaultRole is used when the caller names no position
	DefaultRole = "Senior Software Engineer"

	defaultMaxTokens    = 150
	defaultTemperature  = 0.8
	defaultCostPerToken = 0.00015
)

const systemPromptTemplate = `You are a conversational technical interviewer evaluating candidates for a %s position.

Scenario Context: "%s" - %s

Your role:
- Have a natural conversation with the candidate about this scenario
- If this is the start (no history), ask an opening question about how they'd handle it
- If continuing a conversation, respond naturally to their answer with:
  * Follow-up questions that probe deeper
  * Requests for specific examples or clarification
  * Challenges to their reasoning (respectfully)
  * Acknowledgment of good points before asking what else they'd consider
- Keep responses concise (2-4 sentences, about 30-50 words)
- Be direct, professional, and engaging
- Guide the conversation to explore their decision-making, communication, integrity, and technical judgment
- Don't just accept surface-level answers - dig deeper

Remember: You're conducting a live interview, not writing an essay. Keep it conversational and dynamic.`

// InterviewerConfig tunes the evaluator calls
type InterviewerConfig struct {
	MaxTokens    int
	Temperature  float64
	CostPerToken float64
}

// Interviewer produces interviewer turns for behavioural scenarios
type Interviewer struct {
	evaluator evaluator.Evaluator
	budget    *quota.Budget
	cfg       InterviewerConfig
}

// NewInterviewer creates an interviewer; budget may be nil
func NewInterviewer(ev evaluator.Evaluator, budget *quota.Budget, cfg InterviewerConfig) *Interviewer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.CostPerToken <= 0 {
		cfg.CostPerToken = defaultCostPerToken
	}

	return &Interviewer{
		evaluator: ev,
		budget:    budget,
		cfg:       cfg,
	}
}

// TurnRequest is one stateless turn request
type TurnRequest struct {
	Scenario models.Scenario
	Role     string
	History  []models.ChatTurn
}

// TurnResult is the interviewer's reply
type TurnResult struct {
	Text  string
	Usage models.TokenUsage
}

// Reply asks the evaluator for the next interviewer turn.
// Budget refusals wrap quota.ErrBudgetExceeded; evaluator failures are EvaluatorError.
func (i *Interviewer) Reply(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Scenario.Title) == "" || strings.TrimSpace(req.Scenario.Situation) == "" {
		return nil, &models.ValidationError{Field: "scenario", Message: "scenario title and situation are required"}
	}

	if err := i.budget.Check(ctx); err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = DefaultRole
	}

	messages, err := buildMessages(req.History)
	if err != nil {
		return nil, err
	}

	completion, err := i.evaluator.Complete(ctx, &evaluator.Request{
		System:      fmt.Sprintf(systemPromptTemplate, role, req.Scenario.Title, req.Scenario.Situation),
		Messages:    messages,
		MaxTokens:   i.cfg.MaxTokens,
		Temperature: i.cfg.Temperature,
	})
	if err != nil {
		return nil, &models.EvaluatorError{Err: err}
	}

	total := completion.Usage.Total()
	cumulative, err := i.budget.Record(ctx, total)
	if err != nil {
		// the reply is already paid for, keep it
		slog.Warn("failed to record token usage", "tokens", total, "error", err)
	}

	slog.Info("interviewer reply generated",
		"scenario", req.Scenario.ID,
		"tokens", total,
		"cumulative", cumulative,
	)

	return &TurnResult{
		Text: completion.Text,
		Usage: models.TokenUsage{
			Input:           completion.Usage.InputTokens,
			Output:          completion.Usage.OutputTokens,
			Total:           total,
			CumulativeTotal: cumulative,
			EstimatedCost:   fmt.Sprintf("$%.4f", float64(cumulative)*i.cfg.CostPerToken),
		},
	}, nil
}

// buildMessages maps a transcript to evaluator messages. The model always
// sees a user message first and last.
func buildMessages(history []models.ChatTurn) ([]evaluator.Message, error) {
	if len(history) == 0 {
		return []evaluator.Message{{Role: evaluator.RoleUser, Content: OpeningInstruction}}, nil
	}

	messages := make([]evaluator.Message, 0, len(history)+1)
	if history[0].Role == models.RoleInterviewer {
		messages = append(messages, evaluator.Message{Role: evaluator.RoleUser, Content: OpeningInstruction})
	}

	for _, t := range history {
		role := evaluator.RoleUser
		if t.Role == models.RoleInterviewer {
			role = evaluator.RoleAssistant
		}
		messages = append(messages, evaluator.Message{Role: role, Content: t.Text})
	}

	if history[len(history)-1].Role != models.RoleCandidate {
		return nil, &models.ValidationError{
			Field:   "conversationHistory",
			Message: "conversation history must end with a candidate turn",
		}
	}

	return messages, nil
}

// IsBudgetExceeded reports whether err is a budget refusal
func IsBudgetExceeded(err error) bool {
	return errors.Is(err, quota.ErrBudgetExceeded)
}

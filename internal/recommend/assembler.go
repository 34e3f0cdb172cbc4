package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/terra-clan/interview-engine/internal/evaluator"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/quota"
	"github.com/terra-clan/interview-engine/internal/storage"
)

const (
	defaultMaxTokens   = 2000
	defaultTemperature = 0.3
)

// Config tunes the evaluator call
type Config struct {
	MaxTokens   int
	Temperature float64
}

// Assembler turns a candidate's stored responses into a hiring recommendation.
// It never writes anything.
type Assembler struct {
	store     storage.ResponseStore
	evaluator evaluator.Evaluator
	budget    *quota.Budget
	cfg       Config
}

// NewAssembler creates an assembler; budget may be nil
func NewAssembler(store storage.ResponseStore, ev evaluator.Evaluator, budget *quota.Budget, cfg Config) *Assembler {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	return &Assembler{
		store:     store,
		evaluator: ev,
		budget:    budget,
		cfg:       cfg,
	}
}

// Recommend evaluates every response of the candidate.
//
// Errors: *models.ValidationError for a missing email, models.ErrNotFound when
// the candidate has no records, *models.PersistenceError when the store failed,
// *models.EvaluatorError when the call failed or its reply could not be parsed.
func (a *Assembler) Recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendationResult, error) {
	email := models.NormalizeEmail(req.CandidateEmail)
	if email == "" {
		return nil, &models.ValidationError{Field: "candidateEmail", Message: "candidate email is required"}
	}

	records, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, &models.PersistenceError{Op: "find responses", Err: err}
	}
	if len(records) == 0 {
		return nil, models.ErrNotFound
	}

	groups := Partition(records)
	prompt := BuildContext(email, req.JobRequirements, req.CultureValues, groups)

	if err := a.budget.Check(ctx); err != nil {
		return nil, err
	}

	completion, err := a.evaluator.Complete(ctx, &evaluator.Request{
		Messages:    []evaluator.Message{{Role: evaluator.RoleUser, Content: prompt}},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, &models.EvaluatorError{Err: err}
	}

	if _, err := a.budget.Record(ctx, completion.Usage.Total()); err != nil {
		slog.Warn("failed to record token usage", "tokens", completion.Usage.Total(), "error", err)
	}

	result, err := ParseResult(completion.Text)
	if err != nil {
		slog.Error("unparseable recommendation", "email", email, "error", err)
		return nil, &models.EvaluatorError{Err: err}
	}

	slog.Info("recommendation generated",
		"email", email,
		"records", groups.Len(),
		"decision", result.Decision,
		"overall_score", result.OverallScore,
	)

	return result, nil
}

// ParseResult locates the JSON object in an evaluator reply and validates it.
// Every failure wraps models.ErrMalformedEvaluatorResponse.
func ParseResult(text string) (*models.RecommendationResult, error) {
	raw, ok := evaluator.ExtractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in reply", models.ErrMalformedEvaluatorResponse)
	}

	var result models.RecommendationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedEvaluatorResponse, err)
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedEvaluatorResponse, err)
	}

	return &result, nil
}

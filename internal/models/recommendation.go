package models

import (
	"fmt"
	"strings"
)

// Importance ranks a job requirement
type Importance string

const (
	ImportanceCritical   Importance = "critical"
	ImportanceImportant  Importance = "important"
	ImportanceNiceToHave Importance = "nice-to-have"
)

// JobRequirement is a quality the company is hiring for
type JobRequirement struct {
	Quality    string     `json:"quality"`
	Importance Importance `json:"importance"`
}

// CultureValue is a named company value with its meaning
type CultureValue struct {
	ID          string `json:"id,omitempty"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Decision is the recommended outcome for a candidate
type Decision string

const (
	DecisionHire   Decision = "hire"
	DecisionReject Decision = "reject"
	DecisionReview Decision = "review"
)

// Valid reports whether d is one of the known decisions
func (d Decision) Valid() bool {
	switch d {
	case DecisionHire, DecisionReject, DecisionReview:
		return true
	}
	return false
}

// RecommendationResult is the parsed verdict of the evaluator
type RecommendationResult struct {
	Decision        Decision `json:"decision"`
	Reasoning       string   `json:"reasoning"`
	Strengths       []string `json:"strengths"`
	Concerns        []string `json:"concerns"`
	OverallScore    float64  `json:"overallScore"`
	TechnicalScore  float64  `json:"technicalScore"`
	BehavioralScore float64  `json:"behavioralScore"`
	CulturalFit     float64  `json:"culturalFit"`
	EmailSubject    string   `json:"emailSubject"`
	EmailBody       string   `json:"emailBody"`
}

// Validate checks the decision and that every score is in [1, 10]
func (r *RecommendationResult) Validate() error {
	r.Decision = Decision(strings.ToLower(strings.TrimSpace(string(r.Decision))))
	if !r.Decision.Valid() {
		return fmt.Errorf("unknown decision %q", r.Decision)
	}

	scores := map[string]float64{
		"overallScore":    r.OverallScore,
		"technicalScore":  r.TechnicalScore,
		"behavioralScore": r.BehavioralScore,
		"culturalFit":     r.CulturalFit,
	}
	for name, v := range scores {
		if v < 1 || v > 10 {
			return fmt.Errorf("%s %.1f out of range [1,10]", name, v)
		}
	}

	if strings.TrimSpace(r.Reasoning) == "" {
		return fmt.Errorf("reasoning is empty")
	}
	return nil
}

// TokenUsage reports evaluator token consumption for one call
type TokenUsage struct {
	Input           int    `json:"input"`
	Output          int    `json:"output"`
	Total           int    `json:"total"`
	CumulativeTotal int64  `json:"cumulativeTotal"`
	EstimatedCost   string `json:"estimatedCost"`
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/models"
)

type recommendResponse struct {
	Success        bool                         `json:"success"`
	Recommendation *models.RecommendationResult `json:"recommendation"`
}

type behavioralResponse struct {
	Success    bool              `json:"success"`
	Response   string            `json:"response"`
	TokenUsage models.TokenUsage `json:"tokenUsage"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.Assembler.Recommend(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, "recommend candidate", err)
		return
	}

	slog.Info("recommendation generated",
		"email", models.NormalizeEmail(req.CandidateEmail),
		"decision", result.Decision,
		"overall_score", result.OverallScore,
		"client", clientName(r.Context()),
	)

	writeJSON(w, http.StatusOK, recommendResponse{Success: true, Recommendation: result})
}

// handleBehavioralAI is the stateless interviewer turn: the caller owns the transcript
func (s *Server) handleBehavioralAI(w http.ResponseWriter, r *http.Request) {
	var req models.BehavioralTurnRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	scenario := req.Scenario
	if scenario.Situation == "" && scenario.ID != "" && s.deps.Catalog != nil {
		if known, ok := s.deps.Catalog.Scenario(scenario.ID); ok {
			scenario = known
		}
	}

	result, err := s.deps.Interviewer.Reply(r.Context(), interview.TurnRequest{
		Scenario: scenario,
		Role:     req.Role,
		History:  req.ConversationHistory,
	})
	if err != nil {
		if interview.IsBudgetExceeded(err) {
			slog.Warn("token budget exceeded", "scenario", scenario.ID)
		}
		respondServiceError(w, r, "behavioral turn", err)
		return
	}

	writeJSON(w, http.StatusOK, behavioralResponse{
		Success:    true,
		Response:   result.Text,
		TokenUsage: result.Usage,
	})
}

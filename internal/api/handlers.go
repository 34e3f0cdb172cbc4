package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/progress"
	"github.com/terra-clan/interview-engine/internal/quota"
	"github.com/terra-clan/interview-engine/internal/services"
)

// maxBodyBytes bounds request bodies; transcripts can be long
const maxBodyBytes = 2 << 20

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

// respondServiceError maps a component error to a status code and logs server-side failures
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= 500 {
		slog.Error("request failed", "op", op, "error", err, "client", clientName(r.Context()))
	} else {
		slog.Debug("request rejected", "op", op, "code", code, "error", err)
	}
	respondError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var (
		validation  *models.ValidationError
		persistence *models.PersistenceError
		evaluation  *models.EvaluatorError
		mailErr     *models.MailError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, models.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, interview.ErrUnknownScenario):
		return http.StatusNotFound, "unknown_scenario"
	case errors.Is(err, quota.ErrBudgetExceeded):
		return http.StatusTooManyRequests, "budget_exceeded"
	case errors.Is(err, progress.ErrStageCompleted):
		return http.StatusConflict, "stage_completed"
	case errors.Is(err, progress.ErrTurnOrder):
		return http.StatusConflict, "turn_order"
	case errors.Is(err, progress.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, progress.ErrWrongKind):
		return http.StatusBadRequest, "wrong_kind"
	case errors.As(err, &evaluation):
		if errors.Is(err, models.ErrMalformedEvaluatorResponse) {
			return http.StatusInternalServerError, "malformed_evaluator_response"
		}
		return http.StatusInternalServerError, "evaluator_error"
	case errors.As(err, &mailErr):
		return http.StatusInternalServerError, "mail_error"
	case errors.As(err, &persistence):
		return http.StatusInternalServerError, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a bounded JSON body into v, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	statuses := s.deps.Registry.HealthCheckAll(r.Context())

	if !services.Healthy(statuses) {
		for _, st := range statuses {
			if !st.Healthy {
				slog.Warn("dependency not ready", "dependency", st.Name, "error", st.Error)
			}
		}
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{
			Success: false,
			Data:    map[string]any{"status": "not_ready", "dependencies": statuses},
			Error:   &apiError{Code: "not_ready", Message: "service not ready"},
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"dependencies": statuses,
	})
}

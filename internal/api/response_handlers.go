package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/export"
	"github.com/terra-clan/interview-engine/internal/models"
)

type saveResponseResponse struct {
	Success    bool      `json:"success"`
	ResponseID string    `json:"responseId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type listResponsesResponse struct {
	Success   bool                     `json:"success"`
	Count     int                      `json:"count"`
	Responses []*models.ResponseRecord `json:"responses"`
}

func (s *Server) handleSaveResponse(w http.ResponseWriter, r *http.Request) {
	var req models.SaveResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ack, err := s.deps.Gateway.Submit(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, "save response", err)
		return
	}

	slog.Info("response saved",
		"response_id", ack.ResponseID,
		"email", models.NormalizeEmail(req.CandidateEmail),
		"interview_type", req.InterviewType,
		"task_id", req.TaskID,
	)

	writeJSON(w, http.StatusOK, saveResponseResponse{
		Success:    true,
		ResponseID: ack.ResponseID,
		CreatedAt:  ack.CreatedAt,
	})
}

func (s *Server) handleGetResponses(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseFilters(w, r)
	if !ok {
		return
	}

	records, err := s.deps.Responses.FindByFilter(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, "list responses", err)
		return
	}
	if records == nil {
		records = []*models.ResponseRecord{}
	}

	writeJSON(w, http.StatusOK, listResponsesResponse{
		Success:   true,
		Count:     len(records),
		Responses: records,
	})
}

func (s *Server) handleExportResponses(w http.ResponseWriter, r *http.Request) {
	email := models.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}

	records, err := s.deps.Responses.FindByEmail(r.Context(), email)
	if err != nil {
		respondServiceError(w, r, "export responses", err)
		return
	}
	if len(records) == 0 {
		respondServiceError(w, r, "export responses", models.ErrNotFound)
		return
	}

	// Render fully before writing headers so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, email, records); err != nil {
		respondServiceError(w, r, "export responses", err)
		return
	}

	filename := fmt.Sprintf("responses-%s-%s.xlsx", sanitizeFilename(email), time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write workbook", "error", err, "email", email)
	}
}

// parseFilters reads email, type and limit query parameters
func parseFilters(w http.ResponseWriter, r *http.Request) (models.ResponseFilters, bool) {
	q := r.URL.Query()
	filters := models.ResponseFilters{
		CandidateEmail: models.NormalizeEmail(q.Get("email")),
		InterviewType:  models.InterviewType(q.Get("type")),
	}

	if filters.InterviewType != "" && !filters.InterviewType.Valid() {
		respondError(w, http.StatusBadRequest, "validation_error", "unknown interview type: "+string(filters.InterviewType))
		return filters, false
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	return filters, true
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/terra-clan/interview-engine/internal/models"
)

type decisionEmailResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

type interviewEmailResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	InterviewLink string `json:"interviewLink"`
	MessageID     string `json:"messageId,omitempty"`
}

func (s *Server) handleSendDecisionEmail(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.deps.Mail.SendDecision(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, "send decision email", err)
		return
	}

	slog.Info("decision email sent",
		"email", req.CandidateEmail,
		"decision", req.Decision,
		"message_id", id,
		"client", clientName(r.Context()),
	)

	writeJSON(w, http.StatusOK, decisionEmailResponse{Success: true, MessageID: id})
}

func (s *Server) handleSendInterviewEmail(w http.ResponseWriter, r *http.Request) {
	var req models.InterviewEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := s.deps.Mail.SendInvitation(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, "send interview email", err)
		return
	}

	slog.Info("interview email sent",
		"email", req.CandidateEmail,
		"position", req.CandidatePosition,
		"message_id", inv.MessageID,
		"client", clientName(r.Context()),
	)

	writeJSON(w, http.StatusOK, interviewEmailResponse{
		Success:       true,
		Message:       inv.Message,
		InterviewLink: inv.InterviewLink,
		MessageID:     inv.MessageID,
	})
}

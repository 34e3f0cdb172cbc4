package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/interview-engine/internal/models"
)

// progressKey builds the key from the route and the candidate email
func progressKey(r *http.Request, email string) models.ProgressKey {
	return models.ProgressKey{
		CandidateEmail: email,
		InterviewType:  models.InterviewType(chi.URLParam(r, "type")),
		TaskID:         models.TaskID(chi.URLParam(r, "taskId")),
	}.Normalize()
}

func (s *Server) handleProgressOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.deps.Tracker.Overview(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		respondServiceError(w, r, "progress overview", err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Tracker.Load(r.Context(), progressKey(r, r.URL.Query().Get("email")))
	if err != nil {
		respondServiceError(w, r, "load progress", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	key := progressKey(r, r.URL.Query().Get("email"))
	if err := s.deps.Tracker.Reset(r.Context(), key); err != nil {
		respondServiceError(w, r, "reset progress", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "progress reset",
	})
}

// handleStartTask starts a task; conversational stages also get their opening question
func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	var req models.StartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := progressKey(r, req.CandidateEmail)
	if err := key.Validate(); err != nil {
		respondServiceError(w, r, "start task", err)
		return
	}

	var (
		p   *models.StageProgress
		err error
	)
	if key.InterviewType.Conversational() {
		p, err = s.deps.Conversation.Open(r.Context(), key)
	} else {
		p, err = s.deps.Tracker.Start(r.Context(), key, "")
	}
	if err != nil {
		respondServiceError(w, r, "start task", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req models.DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.deps.Tracker.SaveDraft(r.Context(), progressKey(r, req.CandidateEmail), req.Draft)
	if err != nil {
		respondServiceError(w, r, "save draft", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCandidateTurn(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateTurnRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.deps.Conversation.Say(r.Context(), progressKey(r, req.CandidateEmail), req.Text)
	if err != nil {
		respondServiceError(w, r, "candidate turn", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

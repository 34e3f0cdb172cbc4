package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Catalog handlers: stages and their tasks

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages := s.deps.Catalog.Stages()
	respondJSON(w, http.StatusOK, map[string]any{
		"stages": stages,
		"total":  len(stages),
	})
}

func (s *Server) handleGetStage(w http.ResponseWriter, r *http.Request) {
	stageType := models.InterviewType(chi.URLParam(r, "type"))

	stage := s.deps.Catalog.Stage(stageType)
	if stage == nil {
		respondError(w, http.StatusNotFound, "not_found", "stage not found")
		return
	}

	tasks := s.deps.Catalog.Tasks(stageType)
	respondJSON(w, http.StatusOK, map[string]any{
		"stage": stage,
		"tasks": tasks,
		"total": len(tasks),
	})
}

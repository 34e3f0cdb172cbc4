package submission

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/progress"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// TaskLookup resolves catalog tasks for metadata enrichment
type TaskLookup interface {
	Task(stage models.InterviewType, id models.TaskID) *models.CatalogTask
}

// Ack confirms a durable submission
type Ack struct {
	ResponseID string
	CreatedAt  time.Time
}

// Gateway is the only write path for response records. Each
// (candidateEmail, interviewType, taskId) is persisted at most once.
type Gateway struct {
	store   storage.ResponseStore
	tracker *progress.Tracker
	tasks   TaskLookup
	now     func() time.Time
}

// NewGateway creates a gateway; tasks may be nil
func NewGateway(store storage.ResponseStore, tracker *progress.Tracker, tasks TaskLookup) *Gateway {
	return &Gateway{
		store:   store,
		tracker: tracker,
		tasks:   tasks,
		now:     time.Now,
	}
}

// Submit validates req, writes the record and completes the task.
//
// Errors: *models.ValidationError for bad input (nothing written),
// models.ErrAlreadySubmitted when the task was already submitted,
// *models.PersistenceError when the store failed (task left as it was).
func (g *Gateway) Submit(ctx context.Context, req *models.SaveResponseRequest) (*Ack, error) {
	rec := &models.ResponseRecord{
		CandidateID:      strings.TrimSpace(req.CandidateID),
		CandidateEmail:   models.NormalizeEmail(req.CandidateEmail),
		InterviewType:    req.InterviewType,
		TaskID:           models.TaskID(strings.TrimSpace(string(req.TaskID))),
		TaskTitle:        strings.TrimSpace(req.TaskTitle),
		TimeSpentSeconds: req.TimeSpentSeconds,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	current, err := g.tracker.Load(ctx, rec.Key())
	if err != nil {
		if models.IsValidation(err) {
			return nil, err
		}
		return nil, &models.PersistenceError{Op: "load progress", Err: err}
	}
	if current.Status.IsTerminal() {
		return nil, models.ErrAlreadySubmitted
	}

	if err := resolveContent(rec, req, current); err != nil {
		return nil, err
	}

	rec.Metadata = g.metadata(rec, req.Metadata)
	g.stamp(rec, req, current)

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if err := g.store.SaveResponse(ctx, rec); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			slog.Info("duplicate submission rejected", "key", rec.Key().String())
			return nil, models.ErrAlreadySubmitted
		case models.IsValidation(err):
			return nil, err
		default:
			return nil, &models.PersistenceError{Op: "save response", Err: err}
		}
	}

	// The record is durable from here on; a tracker failure must not turn it into an error.
	if _, err := g.tracker.Complete(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("failed to mark task completed after save",
			"key", rec.Key().String(),
			"response_id", rec.ID,
			"error", err,
		)
	}

	slog.Info("response submitted",
		"response_id", rec.ID,
		"email", rec.CandidateEmail,
		"interview_type", rec.InterviewType,
		"task_id", rec.TaskID,
	)

	return &Ack{ResponseID: rec.ID, CreatedAt: rec.CreatedAt}, nil
}

// resolveContent fills Response and ChatHistory from the request, falling
// back to the tracked draft or transcript. A transcript the tracker already
// holds is authoritative; a client transcript may only repeat it.
func resolveContent(rec *models.ResponseRecord, req *models.SaveResponseRequest, current *models.StageProgress) error {
	if rec.InterviewType.Conversational() {
		transcript := req.ChatHistory
		if len(transcript) == 0 {
			transcript = parseTranscript(req.Response)
		}

		if len(current.Transcript) > 0 {
			if len(transcript) > 0 && !models.SameTranscript(transcript, current.Transcript) {
				return &models.ValidationError{Field: "chatHistory", Message: "chatHistory does not match the recorded conversation"}
			}
			transcript = current.Transcript
		}

		if err := models.ValidateTranscript(transcript); err != nil {
			return err
		}

		rec.ChatHistory = append([]models.ChatTurn(nil), transcript...)
		rec.Response = req.Response
		if strings.TrimSpace(rec.Response) == "" || len(current.Transcript) > 0 {
			data, err := json.Marshal(rec.ChatHistory)
			if err != nil {
				return err
			}
			rec.Response = string(data)
		}
		return nil
	}

	rec.Response = req.Response
	if strings.TrimSpace(rec.Response) == "" {
		rec.Response = current.Draft
	}
	if strings.TrimSpace(rec.Response) == "" {
		return &models.ValidationError{Field: "response", Message: "response is required"}
	}
	if len(req.ChatHistory) > 0 {
		rec.ChatHistory = append([]models.ChatTurn(nil), req.ChatHistory...)
	}
	return nil
}

// parseTranscript decodes a JSON-serialised transcript, nil when text is not one
func parseTranscript(text string) []models.ChatTurn {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		return nil
	}
	var turns []models.ChatTurn
	if err := json.Unmarshal([]byte(text), &turns); err != nil {
		return nil
	}
	return turns
}

// metadata copies the caller's bag and adds derived facts the caller left out
func (g *Gateway) metadata(rec *models.ResponseRecord, in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+3)
	for k, v := range in {
		out[k] = v
	}

	setDefault := func(k string, v any) {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	if rec.InterviewType.Conversational() {
		setDefault("conversationLength", len(rec.ChatHistory))
	}

	if g.tasks == nil {
		return out
	}
	task := g.tasks.Task(rec.InterviewType, rec.TaskID)
	if task == nil {
		return out
	}

	if task.Difficulty != "" {
		setDefault("difficulty", task.Difficulty)
	}
	question := task.Question
	if question == "" {
		question = task.Situation
	}
	if question == "" {
		question = task.Description
	}
	if question != "" {
		setDefault("question", question)
	}

	return out
}

// stamp sets submittedAt, startedAt and, when the caller sent none, time spent
func (g *Gateway) stamp(rec *models.ResponseRecord, req *models.SaveResponseRequest, current *models.StageProgress) {
	rec.SubmittedAt = g.now().UTC()

	switch {
	case req.StartedAt != nil && !req.StartedAt.IsZero():
		rec.StartedAt = req.StartedAt.UTC()
	case current.StartedAt != nil:
		rec.StartedAt = current.StartedAt.UTC()
	default:
		rec.StartedAt = rec.SubmittedAt
	}

	if rec.StartedAt.After(rec.SubmittedAt) {
		rec.StartedAt = rec.SubmittedAt
	}

	if rec.TimeSpentSeconds == 0 && current.StartedAt != nil {
		rec.TimeSpentSeconds = int(rec.SubmittedAt.Sub(rec.StartedAt).Seconds())
	}
}

package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

var (
	// ErrStageCompleted is returned for any mutation of a submitted task
	ErrStageCompleted = errors.New("stage already completed")

	// ErrTurnOrder is returned when a turn would break interviewer/candidate alternation
	ErrTurnOrder = errors.New("turn out of order")

	// ErrWrongKind is returned for a draft on a conversational stage or a turn on a form stage
	ErrWrongKind = errors.New("operation not supported for this stage")
)

// TaskLister lists the catalog tasks of a stage
type TaskLister interface {
	Tasks(stage models.InterviewType) []*models.CatalogTask
}

// RecordLookup finds the durable record of a submitted task, nil when there is none
type RecordLookup interface {
	FindByKey(ctx context.Context, key models.ProgressKey) (*models.ResponseRecord, error)
}

// Tracker drives the NotStarted -> InProgress -> Completed state machine of every candidate task
type Tracker struct {
	store   Store
	tasks   TaskLister
	records RecordLookup
	now     func() time.Time
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithRecords makes submitted records authoritative for keys the store has lost
func WithRecords(records RecordLookup) TrackerOption {
	return func(t *Tracker) {
		t.records = records
	}
}

// NewTracker creates a tracker over store; tasks may be nil when no overview is needed
func NewTracker(store Store, tasks TaskLister, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store: store,
		tasks: tasks,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load returns the progress for key, NotStarted when nothing is stored or submitted
func (t *Tracker) Load(ctx context.Context, key models.ProgressKey) (*models.StageProgress, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	p, err := t.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	restored, err := t.restore(ctx, key)
	if err != nil {
		return nil, err
	}
	if restored != nil {
		return restored, nil
	}
	return models.NewStageProgress(key), nil
}

// restore rebuilds the Completed state of a submitted task from its record
func (t *Tracker) restore(ctx context.Context, key models.ProgressKey) (*models.StageProgress, error) {
	if t.records == nil {
		return nil, nil
	}
	rec, err := t.records.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up submitted record: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return models.CompletedProgress(rec), nil
}

// Start moves a task to InProgress. For conversational stages a non-empty
// opening becomes the first interviewer turn if the transcript is still empty.
func (t *Tracker) Start(ctx context.Context, key models.ProgressKey, opening string) (*models.StageProgress, error) {
	return t.update(ctx, key, func(p *models.StageProgress, now time.Time) error {
		if p.Status.IsTerminal() {
			return ErrStageCompleted
		}
		t.begin(p, now)

		if opening = strings.TrimSpace(opening); opening != "" && p.InterviewType.Conversational() && len(p.Transcript) == 0 {
			p.Transcript = append(p.Transcript, turn(models.RoleInterviewer, opening, now))
		}
		return nil
	})
}

// SaveDraft replaces the draft of a form stage
func (t *Tracker) SaveDraft(ctx context.Context, key models.ProgressKey, draft string) (*models.StageProgress, error) {
	return t.update(ctx, key, func(p *models.StageProgress, now time.Time) error {
		if p.Status.IsTerminal() {
			return ErrStageCompleted
		}
		if p.InterviewType.Conversational() {
			return ErrWrongKind
		}
		t.begin(p, now)
		p.Draft = draft
		return nil
	})
}

// AppendCandidateTurn adds a candidate turn after an interviewer turn
func (t *Tracker) AppendCandidateTurn(ctx context.Context, key models.ProgressKey, text string) (*models.StageProgress, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &models.ValidationError{Field: "text", Message: "text is required"}
	}

	return t.update(ctx, key, func(p *models.StageProgress, now time.Time) error {
		if p.Status.IsTerminal() {
			return ErrStageCompleted
		}
		if !p.InterviewType.Conversational() {
			return ErrWrongKind
		}

		last := p.LastTurn()
		if last == nil || last.Role != models.RoleInterviewer {
			return fmt.Errorf("%w: waiting for the interviewer", ErrTurnOrder)
		}

		t.begin(p, now)
		p.Transcript = append(p.Transcript, turn(models.RoleCandidate, text, now))
		return nil
	})
}

// AppendInterviewerTurn adds the reply to the candidate turn at position
// replyTo (0-based). Exactly one reply is accepted per candidate turn.
func (t *Tracker) AppendInterviewerTurn(ctx context.Context, key models.ProgressKey, replyTo int, text string) (*models.StageProgress, error) {
	return t.update(ctx, key, func(p *models.StageProgress, now time.Time) error {
		if p.Status.IsTerminal() {
			return ErrStageCompleted
		}
		if !p.InterviewType.Conversational() {
			return ErrWrongKind
		}

		if len(p.Transcript) != replyTo+1 || p.Transcript[replyTo].Role != models.RoleCandidate {
			return fmt.Errorf("%w: no pending candidate turn at %d", ErrTurnOrder, replyTo)
		}

		p.Transcript = append(p.Transcript, turn(models.RoleInterviewer, text, now))
		return nil
	})
}

// Complete freezes the task and mirrors the persisted record into it
func (t *Tracker) Complete(ctx context.Context, rec *models.ResponseRecord) (*models.StageProgress, error) {
	return t.write(ctx, rec.Key(), false, func(p *models.StageProgress, now time.Time) error {
		if p.Status.IsTerminal() {
			return models.ErrAlreadySubmitted
		}

		t.begin(p, now)
		p.Status = models.ProgressCompleted
		p.CompletedAt = &now
		p.ResponseID = rec.ID
		if p.InterviewType.Conversational() {
			p.Transcript = append([]models.ChatTurn(nil), rec.ChatHistory...)
		} else {
			p.Draft = rec.Response
		}
		return nil
	})
}

// Reset discards an unfinished task
func (t *Tracker) Reset(ctx context.Context, key models.ProgressKey) error {
	p, err := t.Load(ctx, key)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() {
		return ErrStageCompleted
	}
	return t.store.Clear(ctx, p.Key())
}

// Overview reports every stage of the catalog for one candidate.
// A stage is completed once all of its tasks are; it is locked while the previous stage is not.
func (t *Tracker) Overview(ctx context.Context, email string) (*models.ProgressOverview, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, &models.ValidationError{Field: "email", Message: "email is required"}
	}

	overview := &models.ProgressOverview{CandidateEmail: email, Completed: true}
	previousDone := true

	for _, stage := range models.InterviewTypes {
		status := &models.StageStatus{
			InterviewType: stage,
			Order:         stage.Order(),
			Status:        models.ProgressNotStarted,
			Locked:        !previousDone,
			Tasks:         make([]*models.StageProgress, 0),
		}

		var tasks []*models.CatalogTask
		if t.tasks != nil {
			tasks = t.tasks.Tasks(stage)
		}

		completed := 0
		for _, task := range tasks {
			p, err := t.Load(ctx, models.ProgressKey{CandidateEmail: email, InterviewType: stage, TaskID: task.ID})
			if err != nil {
				return nil, err
			}
			status.Tasks = append(status.Tasks, p)

			switch p.Status {
			case models.ProgressCompleted:
				completed++
				status.Status = models.ProgressInProgress
			case models.ProgressInProgress:
				status.Status = models.ProgressInProgress
			}
		}

		if len(tasks) > 0 && completed == len(tasks) {
			status.Status = models.ProgressCompleted
		}

		done := status.Status == models.ProgressCompleted
		if !done {
			overview.Completed = false
			if overview.NextStage == "" {
				overview.NextStage = stage
			}
		}
		previousDone = previousDone && done

		overview.Stages = append(overview.Stages, status)
	}

	return overview, nil
}

func (t *Tracker) update(ctx context.Context, key models.ProgressKey, fn func(p *models.StageProgress, now time.Time) error) (*models.StageProgress, error) {
	return t.write(ctx, key, true, fn)
}

// write applies fn atomically. With restore set, a key the store has lost
// starts from the Completed state of its submitted record, if any.
func (t *Tracker) write(ctx context.Context, key models.ProgressKey, restore bool, fn func(p *models.StageProgress, now time.Time) error) (*models.StageProgress, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var seed *models.StageProgress
	if restore && t.records != nil {
		stored, err := t.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			if seed, err = t.restore(ctx, key); err != nil {
				return nil, err
			}
		}
	}

	return t.store.Update(ctx, key, func(p *models.StageProgress) error {
		if seed != nil && !p.Status.IsTerminal() {
			*p = *seed.Clone()
		}
		now := t.now().UTC()
		if err := fn(p, now); err != nil {
			return err
		}
		p.UpdatedAt = now
		return nil
	})
}

// begin moves NotStarted to InProgress
func (t *Tracker) begin(p *models.StageProgress, now time.Time) {
	if p.Status == models.ProgressNotStarted || p.Status == "" {
		p.Status = models.ProgressInProgress
	}
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
}

func turn(role models.TurnRole, text string, now time.Time) models.ChatTurn {
	return models.ChatTurn{Role: role, Text: text, Timestamp: &now}
}

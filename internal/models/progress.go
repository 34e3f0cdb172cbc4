package models

import (
	"fmt"
	"strings"
	"time"
)

// ProgressStatus represents where a candidate is within one task of a stage
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed" // Frozen, mirrored into a ResponseRecord
)

// IsTerminal returns true if no further mutation is allowed
func (s ProgressStatus) IsTerminal() bool {
	return s == ProgressCompleted
}

// ProgressKey identifies one tracked task of one candidate
type ProgressKey struct {
	CandidateEmail string
	InterviewType  InterviewType
	TaskID         TaskID
}

// Normalize returns the key with a canonical email
func (k ProgressKey) Normalize() ProgressKey {
	k.CandidateEmail = NormalizeEmail(k.CandidateEmail)
	k.TaskID = TaskID(strings.TrimSpace(string(k.TaskID)))
	return k
}

// Validate checks that every part of the key is present
func (k ProgressKey) Validate() error {
	if k.CandidateEmail == "" {
		return &ValidationError{Field: "candidateEmail", Message: "candidateEmail is required"}
	}
	if !k.InterviewType.Valid() {
		return &ValidationError{Field: "interviewType", Message: "unknown interview type: " + string(k.InterviewType)}
	}
	if k.TaskID == "" {
		return &ValidationError{Field: "taskId", Message: "taskId is required"}
	}
	return nil
}

// String renders the key for logs and store keys
func (k ProgressKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.CandidateEmail, k.InterviewType, k.TaskID)
}

// StageProgress is the in-progress state of one task within a stage
type StageProgress struct {
	CandidateEmail string         `json:"candidateEmail"`
	InterviewType  InterviewType  `json:"interviewType"`
	TaskID         TaskID         `json:"taskId"`
	Status         ProgressStatus `json:"status"`
	Draft          string         `json:"draft,omitempty"`
	Transcript     []ChatTurn     `json:"transcript,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	ResponseID     string         `json:"responseId,omitempty"`
}

// NewStageProgress returns the NotStarted state for key
func NewStageProgress(key ProgressKey) *StageProgress {
	return &StageProgress{
		CandidateEmail: key.CandidateEmail,
		InterviewType:  key.InterviewType,
		TaskID:         key.TaskID,
		Status:         ProgressNotStarted,
	}
}

// CompletedProgress rebuilds the frozen state of a task from its submitted record
func CompletedProgress(rec *ResponseRecord) *StageProgress {
	p := NewStageProgress(rec.Key().Normalize())
	p.Status = ProgressCompleted
	p.ResponseID = rec.ID
	p.UpdatedAt = rec.SubmittedAt

	started, submitted := rec.StartedAt, rec.SubmittedAt
	if !started.IsZero() {
		p.StartedAt = &started
	}
	if !submitted.IsZero() {
		p.CompletedAt = &submitted
	}

	if p.InterviewType.Conversational() {
		p.Transcript = append([]ChatTurn(nil), rec.ChatHistory...)
	} else {
		p.Draft = rec.Response
	}
	return p
}

// Key returns the tracking key
func (p *StageProgress) Key() ProgressKey {
	return ProgressKey{
		CandidateEmail: p.CandidateEmail,
		InterviewType:  p.InterviewType,
		TaskID:         p.TaskID,
	}
}

// LastTurn returns the most recent transcript turn, nil when empty
func (p *StageProgress) LastTurn() *ChatTurn {
	if len(p.Transcript) == 0 {
		return nil
	}
	return &p.Transcript[len(p.Transcript)-1]
}

// HasContent reports whether the task has something worth submitting
func (p *StageProgress) HasContent() bool {
	if p.InterviewType.Conversational() {
		return CandidateTurns(p.Transcript) > 0
	}
	return strings.TrimSpace(p.Draft) != ""
}

// Clone returns a deep copy safe to hand out of a store
func (p *StageProgress) Clone() *StageProgress {
	c := *p
	if p.Transcript != nil {
		c.Transcript = append([]ChatTurn(nil), p.Transcript...)
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		c.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// StageStatus summarises a whole stage for one candidate
type StageStatus struct {
	InterviewType InterviewType    `json:"interviewType"`
	Order         int              `json:"order"`
	Status        ProgressStatus   `json:"status"`
	Locked        bool             `json:"locked"`
	Tasks         []*StageProgress `json:"tasks"`
}

// ProgressOverview is the candidate-wide view across all stages
type ProgressOverview struct {
	CandidateEmail string         `json:"candidateEmail"`
	Stages         []*StageStatus `json:"stages"`
	NextStage      InterviewType  `json:"nextStage,omitempty"`
	Completed      bool           `json:"completed"`
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// MaxListResponses caps every listing of response records
const MaxListResponses = 50

// ResponseRecord is a candidate's submitted answer to one task of one stage
type ResponseRecord struct {
	ID               string         `json:"id"`
	CandidateID      string         `json:"candidateId"`
	CandidateEmail   string         `json:"candidateEmail"`
	InterviewType    InterviewType  `json:"interviewType"`
	TaskID           TaskID         `json:"taskId"`
	TaskTitle        string         `json:"taskTitle"`
	Response         string         `json:"response"`
	ChatHistory      []ChatTurn     `json:"chatHistory,omitempty"`
	TimeSpentSeconds int            `json:"timeSpentSeconds"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StartedAt        time.Time      `json:"startedAt"`
	SubmittedAt      time.Time      `json:"submittedAt"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Validate checks the identity fields every record must carry
func (r *ResponseRecord) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"candidateId", r.CandidateID},
		{"candidateEmail", r.CandidateEmail},
		{"interviewType", string(r.InterviewType)},
		{"taskId", string(r.TaskID)},
		{"taskTitle", r.TaskTitle},
	}

	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field, Message: f.field + " is required"}
		}
	}

	if !r.InterviewType.Valid() {
		return &ValidationError{Field: "interviewType", Message: "unknown interview type: " + string(r.InterviewType)}
	}

	if r.TimeSpentSeconds < 0 {
		return &ValidationError{Field: "timeSpentSeconds", Message: "timeSpentSeconds must not be negative"}
	}

	if !r.StartedAt.IsZero() && !r.SubmittedAt.IsZero() && r.SubmittedAt.Before(r.StartedAt) {
		return &ValidationError{Field: "submittedAt", Message: "submittedAt must not precede startedAt"}
	}

	return nil
}

// Key returns the uniqueness key of the record
func (r *ResponseRecord) Key() ProgressKey {
	return ProgressKey{
		CandidateEmail: r.CandidateEmail,
		InterviewType:  r.InterviewType,
		TaskID:         r.TaskID,
	}
}

// MetaString returns a metadata value as a string, "" when missing
func (r *ResponseRecord) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	switch v := r.Metadata[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// MetaBool returns a metadata flag, def when missing or not a bool
func (r *ResponseRecord) MetaBool(key string, def bool) bool {
	if r.Metadata == nil {
		return def
	}
	if v, ok := r.Metadata[key].(bool); ok {
		return v
	}
	return def
}

// ResponseFilters holds filters for listing response records
type ResponseFilters struct {
	CandidateEmail string
	InterviewType  InterviewType
	Limit          int
}

// EffectiveLimit clamps Limit into (0, MaxListResponses]
func (f ResponseFilters) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxListResponses {
		return MaxListResponses
	}
	return f.Limit
}

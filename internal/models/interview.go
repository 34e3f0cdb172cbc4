package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InterviewType identifies one of the ordered interview stages
type InterviewType string

const (
	InterviewTechnical1  InterviewType = "technical1"  // Coding tasks
	InterviewTechnical2  InterviewType = "technical2"  // Scenario analysis
	InterviewBehavioural InterviewType = "behavioural" // Conversational assessment
)

// InterviewTypes lists all stages in the order a candidate takes them
var InterviewTypes = []InterviewType{
	InterviewTechnical1,
	InterviewTechnical2,
	InterviewBehavioural,
}

// Valid reports whether t is one of the known stages
func (t InterviewType) Valid() bool {
	switch t {
	case InterviewTechnical1, InterviewTechnical2, InterviewBehavioural:
		return true
	}
	return false
}

// Order returns the 1-based position of the stage, 0 for unknown stages
func (t InterviewType) Order() int {
	for i, it := range InterviewTypes {
		if it == t {
			return i + 1
		}
	}
	return 0
}

// Previous returns the stage taken before t, or "" for the first stage
func (t InterviewType) Previous() InterviewType {
	if o := t.Order(); o > 1 {
		return InterviewTypes[o-2]
	}
	return ""
}

// Conversational reports whether the stage is driven by interviewer turns
func (t InterviewType) Conversational() bool {
	return t == InterviewBehavioural
}

// TaskID identifies a task within a stage.
// The web client sends numeric ids, so both JSON strings and numbers decode.
type TaskID string

// UnmarshalJSON accepts "3" as well as 3
func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("taskId must be a string or a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = TaskID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = TaskID(n.String())
	return nil
}

// String returns the raw id
func (id TaskID) String() string {
	return string(id)
}

// TurnRole identifies who authored a transcript turn
type TurnRole string

const (
	RoleInterviewer TurnRole = "interviewer"
	RoleCandidate   TurnRole = "candidate"
)

// ParseTurnRole normalises the role names used by the different clients
func ParseTurnRole(s string) (TurnRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interviewer", "ai", "assistant":
		return RoleInterviewer, nil
	case "candidate", "user":
		return RoleCandidate, nil
	}
	return "", fmt.Errorf("unknown turn role %q", s)
}

// ChatTurn is one entry of a conversational transcript
type ChatTurn struct {
	Role      TurnRole   `json:"role"`
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// UnmarshalJSON normalises role aliases and accepts "content" for the text
func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role      string     `json:"role"`
		Text      string     `json:"text"`
		Content   string     `json:"content"`
		Timestamp *time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	role, err := ParseTurnRole(raw.Role)
	if err != nil {
		return err
	}

	t.Role = role
	t.Text = raw.Text
	if t.Text == "" {
		t.Text = raw.Content
	}
	t.Timestamp = raw.Timestamp
	return nil
}

// CandidateTurns counts turns authored by the candidate
func CandidateTurns(transcript []ChatTurn) int {
	n := 0
	for _, turn := range transcript {
		if turn.Role == RoleCandidate {
			n++
		}
	}
	return n
}

// ValidateTranscript checks that a conversation opens with the interviewer,
// alternates strictly, has no empty turns and contains a candidate turn
func ValidateTranscript(transcript []ChatTurn) error {
	if CandidateTurns(transcript) == 0 {
		return &ValidationError{Field: "chatHistory", Message: "conversation has no candidate turn"}
	}
	if transcript[0].Role != RoleInterviewer {
		return &ValidationError{Field: "chatHistory", Message: "conversation must open with the interviewer"}
	}

	for i, turn := range transcript {
		if strings.TrimSpace(turn.Text) == "" {
			return &ValidationError{Field: "chatHistory", Message: fmt.Sprintf("turn %d is empty", i)}
		}
		if i > 0 && transcript[i-1].Role == turn.Role {
			return &ValidationError{Field: "chatHistory", Message: fmt.Sprintf("turn %d does not alternate", i)}
		}
	}
	return nil
}

// SameTranscript reports whether a and b hold the same turns, ignoring timestamps
func SameTranscript(a, b []ChatTurn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role || strings.TrimSpace(a[i].Text) != strings.TrimSpace(b[i].Text) {
			return false
		}
	}
	return true
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

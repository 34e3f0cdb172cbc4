package models

import "time"

// SaveResponseRequest is the body of a response submission
type SaveResponseRequest struct {
	CandidateID      string         `json:"candidateId"`
	CandidateEmail   string         `json:"candidateEmail"`
	InterviewType    InterviewType  `json:"interviewType"`
	TaskID           TaskID         `json:"taskId"`
	TaskTitle        string         `json:"taskTitle"`
	Response         string         `json:"response,omitempty"`
	ChatHistory      []ChatTurn     `json:"chatHistory,omitempty"`
	TimeSpentSeconds int            `json:"timeSpentSeconds"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// RecommendRequest asks for a hiring recommendation
type RecommendRequest struct {
	CandidateEmail  string           `json:"candidateEmail"`
	JobRequirements []JobRequirement `json:"jobRequirements"`
	CultureValues   []CultureValue   `json:"cultureValues"`
}

// BehavioralTurnRequest asks the interviewer for its next line.
// History roles may be user/assistant as well as candidate/interviewer.
type BehavioralTurnRequest struct {
	Scenario            Scenario   `json:"scenario"`
	Role                string     `json:"role"`
	ConversationHistory []ChatTurn `json:"conversationHistory"`
}

// DecisionEmailRequest sends a reviewed decision to a candidate
type DecisionEmailRequest struct {
	CandidateEmail string   `json:"candidateEmail"`
	CandidateName  string   `json:"candidateName,omitempty"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Decision       Decision `json:"decision"`
}

// InterviewEmailRequest invites a candidate to the interview environment
type InterviewEmailRequest struct {
	CandidateName     string `json:"candidateName"`
	CandidateEmail    string `json:"candidateEmail"`
	CandidatePosition string `json:"candidatePosition"`
}

// DraftRequest replaces the draft of a form stage
type DraftRequest struct {
	CandidateEmail string `json:"candidateEmail"`
	Draft          string `json:"draft"`
}

// StartRequest starts a task
type StartRequest struct {
	CandidateEmail string `json:"candidateEmail"`
}

// CandidateTurnRequest carries one candidate message of a conversational stage
type CandidateTurnRequest struct {
	CandidateEmail string `json:"candidateEmail"`
	Text           string `json:"text"`
}

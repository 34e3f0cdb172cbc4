package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTaskIDUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want TaskID
	}{
		{`"3"`, "3"},
		{`3`, "3"},
		{`" abc "`, "abc"},
		{`null`, ""},
		{`2.5`, "2.5"},
	}

	for _, tt := range tests {
		var id TaskID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("unmarshal %s = %q, want %q", tt.in, id, tt.want)
		}
	}

	var id TaskID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Error("expected error for object taskId")
	}
}

func TestChatTurnRoleAliases(t *testing.T) {
	data := `[
		{"role":"ai","text":"Tell me about a conflict."},
		{"role":"user","content":"We disagreed on the schema."},
		{"role":"assistant","content":"What did you do?"},
		{"role":"candidate","text":"I wrote a proposal."}
	]`

	var turns []ChatTurn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []TurnRole{RoleInterviewer, RoleCandidate, RoleInterviewer, RoleCandidate}
	for i, turn := range turns {
		if turn.Role != want[i] {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, want[i])
		}
		if turn.Text == "" {
			t.Errorf("turn %d has empty text", i)
		}
	}

	if CandidateTurns(turns) != 2 {
		t.Errorf("expected 2 candidate turns, got %d", CandidateTurns(turns))
	}

	var bad ChatTurn
	if err := json.Unmarshal([]byte(`{"role":"narrator","text":"x"}`), &bad); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestResponseRecordValidate(t *testing.T) {
	valid := func() *ResponseRecord {
		return &ResponseRecord{
			CandidateID:    "cand-1",
			CandidateEmail: "a@x.com",
			InterviewType:  InterviewTechnical1,
			TaskID:         "1",
			TaskTitle:      "Bug Fix: Payment Processing",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	mutations := map[string]func(r *ResponseRecord){
		"candidateId":      func(r *ResponseRecord) { r.CandidateID = "" },
		"candidateEmail":   func(r *ResponseRecord) { r.CandidateEmail = "  " },
		"interviewType":    func(r *ResponseRecord) { r.InterviewType = "" },
		"taskId":           func(r *ResponseRecord) { r.TaskID = "" },
		"taskTitle":        func(r *ResponseRecord) { r.TaskTitle = "" },
		"timeSpentSeconds": func(r *ResponseRecord) { r.TimeSpentSeconds = -1 },
	}

	for field, mutate := range mutations {
		r := valid()
		mutate(r)

		err := r.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", field, err)
			continue
		}
		if ve.Field != field {
			t.Errorf("%s: error field = %s", field, ve.Field)
		}
	}

	r := valid()
	r.InterviewType = "simulation"
	if !IsValidation(r.Validate()) {
		t.Error("expected ValidationError for unknown interview type")
	}

	r = valid()
	r.StartedAt = time.Now()
	r.SubmittedAt = r.StartedAt.Add(-time.Second)
	if !IsValidation(r.Validate()) {
		t.Error("expected ValidationError when submittedAt precedes startedAt")
	}
}

func TestInterviewTypeOrder(t *testing.T) {
	if InterviewTechnical1.Previous() != "" {
		t.Error("technical1 should have no previous stage")
	}
	if InterviewBehavioural.Previous() != InterviewTechnical2 {
		t.Errorf("behavioural previous = %s", InterviewBehavioural.Previous())
	}
	if InterviewType("simulation").Order() != 0 {
		t.Error("unknown stage should have order 0")
	}
	if !InterviewBehavioural.Conversational() || InterviewTechnical2.Conversational() {
		t.Error("only behavioural is conversational")
	}
}

func TestStageProgressHasContent(t *testing.T) {
	p := NewStageProgress(ProgressKey{CandidateEmail: "a@x.com", InterviewType: InterviewBehavioural, TaskID: "1"})
	p.Transcript = []ChatTurn{{Role: RoleInterviewer, Text: "Hi"}}
	if p.HasContent() {
		t.Error("transcript without candidate turn should have no content")
	}
	p.Transcript = append(p.Transcript, ChatTurn{Role: RoleCandidate, Text: "Hello"})
	if !p.HasContent() {
		t.Error("expected content after candidate turn")
	}

	form := NewStageProgress(ProgressKey{CandidateEmail: "a@x.com", InterviewType: InterviewTechnical1, TaskID: "1"})
	form.Draft = "   "
	if form.HasContent() {
		t.Error("blank draft should have no content")
	}
}

func TestRecommendationValidate(t *testing.T) {
	r := RecommendationResult{
		Decision:        "HIRE",
		Reasoning:       "Strong across the board",
		OverallScore:    8,
		TechnicalScore:  9,
		BehavioralScore: 8,
		CulturalFit:     7,
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Decision != DecisionHire {
		t.Errorf("decision not normalised: %s", r.Decision)
	}

	r.CulturalFit = 11
	if err := r.Validate(); err == nil {
		t.Error("expected error for score out of range")
	}

	r.CulturalFit = 7
	r.Decision = "maybe"
	if err := r.Validate(); err == nil {
		t.Error("expected error for unknown decision")
	}
}

func TestApiClientHasPermission(t *testing.T) {
	client := &ApiClient{IsActive: true, Permissions: []string{"responses:*", PermEmailsSend}}

	if !client.HasPermission(PermResponsesRead) {
		t.Error("wildcard should grant responses:read")
	}
	if !client.HasPermission(PermEmailsSend) {
		t.Error("exact permission should be granted")
	}
	if client.HasPermission(PermRecommendationsWrite) {
		t.Error("recommendations:write should not be granted")
	}

	client.IsActive = false
	if client.HasPermission(PermEmailsSend) {
		t.Error("inactive client should have no permissions")
	}
}

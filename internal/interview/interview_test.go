package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/terra-clan/interview-engine/internal/catalog"
	"github.com/terra-clan/interview-engine/internal/evaluator"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/progress"
	"github.com/terra-clan/interview-engine/internal/quota"
)

var testScenario = models.Scenario{
	ID:        "1",
	Title:     "Conflict Resolution",
	Situation: "Two senior engineers disagree on the architecture of a new service.",
}

func TestReplyOpeningAndRoleMapping(t *testing.T) {
	var got *evaluator.Request
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		got = req
		return &evaluator.Completion{Text: "How would you start?", Usage: evaluator.Usage{InputTokens: 100, OutputTokens: 20}}, nil
	})

	iv := NewInterviewer(ev, quota.NewBudget(quota.NewMemoryCounter(), 20000, 0.9), InterviewerConfig{})

	result, err := iv.Reply(context.Background(), TurnRequest{Scenario: testScenario})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	if len(got.Messages) != 1 || got.Messages[0].Content != OpeningInstruction {
		t.Errorf("expected single opener message, got %+v", got.Messages)
	}
	if got.MaxTokens != 150 || got.Temperature != 0.8 {
		t.Errorf("unexpected call parameters: %d, %v", got.MaxTokens, got.Temperature)
	}
	if !strings.Contains(got.System, DefaultRole) || !strings.Contains(got.System, testScenario.Situation) {
		t.Errorf("system prompt missing role or situation")
	}

	if result.Usage.Total != 120 || result.Usage.CumulativeTotal != 120 {
		t.Errorf("unexpected usage %+v", result.Usage)
	}
	if result.Usage.EstimatedCost != "$0.0180" {
		t.Errorf("unexpected cost %s", result.Usage.EstimatedCost)
	}

	history := []models.ChatTurn{
		{Role: models.RoleInterviewer, Text: "How would you start?"},
		{Role: models.RoleCandidate, Text: "I would talk to both."},
	}
	if _, err := iv.Reply(context.Background(), TurnRequest{Scenario: testScenario, Role: "Backend Engineer", History: history}); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	want := []evaluator.Role{evaluator.RoleUser, evaluator.RoleAssistant, evaluator.RoleUser}
	if len(got.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got.Messages))
	}
	for i, role := range want {
		if got.Messages[i].Role != role {
			t.Errorf("message %d role = %s, want %s", i, got.Messages[i].Role, role)
		}
	}
	if got.Messages[0].Content != OpeningInstruction {
		t.Errorf("opener not prepended")
	}
	if !strings.Contains(got.System, "Backend Engineer") {
		t.Errorf("system prompt missing custom role")
	}
}

func TestReplyValidation(t *testing.T) {
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		t.Fatal("evaluator should not be called")
		return nil, nil
	})
	iv := NewInterviewer(ev, nil, InterviewerConfig{})

	_, err := iv.Reply(context.Background(), TurnRequest{})
	if !models.IsValidation(err) {
		t.Errorf("expected validation error for missing scenario, got %v", err)
	}

	_, err = iv.Reply(context.Background(), TurnRequest{
		Scenario: testScenario,
		History:  []models.ChatTurn{{Role: models.RoleInterviewer, Text: "Question?"}},
	})
	if !models.IsValidation(err) {
		t.Errorf("expected validation error for history ending with interviewer, got %v", err)
	}
}

func TestReplyBudgetExceeded(t *testing.T) {
	var calls atomic.Int32
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		calls.Add(1)
		return &evaluator.Completion{Text: "ok", Usage: evaluator.Usage{InputTokens: 80, OutputTokens: 20}}, nil
	})

	iv := NewInterviewer(ev, quota.NewBudget(quota.NewMemoryCounter(), 100, 0.9), InterviewerConfig{})
	ctx := context.Background()

	if _, err := iv.Reply(ctx, TurnRequest{Scenario: testScenario}); err != nil {
		t.Fatalf("first reply failed: %v", err)
	}

	_, err := iv.Reply(ctx, TurnRequest{Scenario: testScenario})
	if !IsBudgetExceeded(err) {
		t.Fatalf("expected budget exceeded, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("evaluator called %d times, want 1", calls.Load())
	}
}

func TestReplyEvaluatorError(t *testing.T) {
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		return nil, errors.New("upstream down")
	})
	iv := NewInterviewer(ev, nil, InterviewerConfig{})

	_, err := iv.Reply(context.Background(), TurnRequest{Scenario: testScenario})
	var evalErr *models.EvaluatorError
	if !errors.As(err, &evalErr) {
		t.Errorf("expected EvaluatorError, got %v", err)
	}
}

func newConversation(t *testing.T, ev evaluator.Evaluator) (*Conversation, *progress.Tracker) {
	t.Helper()

	cat := catalog.NewLoader()
	cat.Add(&models.CatalogTask{
		ID:        testScenario.ID,
		Stage:     models.InterviewBehavioural,
		Kind:      "conversation",
		Title:     testScenario.Title,
		Situation: testScenario.Situation,
	})

	tracker := progress.NewTracker(progress.NewMemoryStore(), cat)
	iv := NewInterviewer(ev, nil, InterviewerConfig{})
	return NewConversation(tracker, iv, cat, ""), tracker
}

func behaviouralKey() models.ProgressKey {
	return models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewBehavioural, TaskID: "1"}
}

func TestConversationTranscriptOrderingWithFailure(t *testing.T) {
	const exchanges = 4
	const failOn = 3 // third candidate turn

	var calls atomic.Int32
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		n := calls.Add(1) - 1 // call 0 is the opening
		if int(n) == failOn {
			return nil, errors.New("evaluator timeout")
		}
		return &evaluator.Completion{Text: fmt.Sprintf("question %d", n)}, nil
	})

	conv, _ := newConversation(t, ev)
	ctx := context.Background()
	key := behaviouralKey()

	p, err := conv.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.Status != models.ProgressInProgress || len(p.Transcript) != 1 || p.Transcript[0].Text != "question 0" {
		t.Fatalf("unexpected opened progress: %+v", p)
	}

	for i := 1; i <= exchanges; i++ {
		p, err = conv.Say(ctx, key, fmt.Sprintf("answer %d", i))
		if err != nil {
			t.Fatalf("Say %d failed: %v", i, err)
		}
	}

	if len(p.Transcript) != 2*exchanges+1 {
		t.Fatalf("expected %d turns, got %d", 2*exchanges+1, len(p.Transcript))
	}

	for i, turn := range p.Transcript {
		want := models.RoleInterviewer
		if i%2 == 1 {
			want = models.RoleCandidate
		}
		if turn.Role != want {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, want)
		}
	}

	// candidate turn of the failed exchange is kept, followed by the fallback
	if p.Transcript[2*failOn-1].Text != fmt.Sprintf("answer %d", failOn) {
		t.Errorf("candidate turn %d lost: %q", failOn, p.Transcript[2*failOn-1].Text)
	}
	if p.Transcript[2*failOn].Text != FallbackReply {
		t.Errorf("expected fallback reply, got %q", p.Transcript[2*failOn].Text)
	}
	if p.Transcript[2*failOn+2].Text != "question 4" {
		t.Errorf("conversation did not resume after fallback: %q", p.Transcript[2*failOn+2].Text)
	}
}

func TestConversationOpenFallbackAndIdempotence(t *testing.T) {
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		return nil, errors.New("no key configured")
	})

	conv, _ := newConversation(t, ev)
	ctx := context.Background()
	key := behaviouralKey()

	p, err := conv.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(p.Transcript) != 1 || p.Transcript[0].Text != FallbackOpening(testScenario) {
		t.Fatalf("unexpected opening: %+v", p.Transcript)
	}

	again, err := conv.Open(ctx, key)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if len(again.Transcript) != 1 {
		t.Errorf("second Open changed transcript: %d turns", len(again.Transcript))
	}
}

func TestConversationRecoversPendingReply(t *testing.T) {
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		return &evaluator.Completion{Text: "follow-up"}, nil
	})

	conv, tracker := newConversation(t, ev)
	ctx := context.Background()
	key := behaviouralKey()

	if _, err := tracker.Start(ctx, key, "opening"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// candidate turn stored but the reply never made it
	if _, err := tracker.AppendCandidateTurn(ctx, key, "my answer"); err != nil {
		t.Fatalf("AppendCandidateTurn failed: %v", err)
	}

	if _, err := conv.Say(ctx, key, "another"); !errors.Is(err, progress.ErrTurnOrder) {
		t.Errorf("expected ErrTurnOrder while a reply is pending, got %v", err)
	}

	p, err := conv.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(p.Transcript) != 3 || p.Transcript[2].Text != "follow-up" {
		t.Errorf("pending reply not recovered: %+v", p.Transcript)
	}
}

func TestConversationRejectsUnknownScenarioAndFormStage(t *testing.T) {
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		return &evaluator.Completion{Text: "q"}, nil
	})
	conv, _ := newConversation(t, ev)
	ctx := context.Background()

	key := behaviouralKey()
	key.TaskID = "99"
	if _, err := conv.Open(ctx, key); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}

	form := models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewTechnical1, TaskID: "1"}
	if _, err := conv.Say(ctx, form, "hi"); !errors.Is(err, progress.ErrWrongKind) {
		t.Errorf("expected ErrWrongKind, got %v", err)
	}
}

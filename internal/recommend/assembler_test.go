package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/terra-clan/interview-engine/internal/evaluator"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

const validReply = "```json\n" + `{
  "decision": "Hire",
  "reasoning": "Strong debugging and clear communication.",
  "strengths": ["debugging", "ownership"],
  "concerns": ["limited system design depth"],
  "overallScore": 8,
  "technicalScore": 8,
  "behavioralScore": 9,
  "culturalFit": 8,
  "emailSubject": "Next steps",
  "emailBody": "Hello,\n\nWe'd like to move forward."
}` + "\n```"

func seed(t *testing.T, repo *storage.MemoryRepository, email string, k, m, n int) {
	t.Helper()
	ctx := context.Background()

	add := func(it models.InterviewType, i int, rec *models.ResponseRecord) {
		rec.CandidateID = "cand"
		rec.CandidateEmail = email
		rec.InterviewType = it
		rec.TaskID = models.TaskID(fmt.Sprint(i))
		if rec.TaskTitle == "" {
			rec.TaskTitle = fmt.Sprintf("%s task %d", it, i)
		}
		if err := repo.SaveResponse(ctx, rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	for i := 1; i <= k; i++ {
		add(models.InterviewTechnical1, i, &models.ResponseRecord{
			Response:         fmt.Sprintf("solution %d", i),
			TimeSpentSeconds: 125,
			Metadata:         map[string]any{"difficulty": "Medium", "completed": true},
		})
	}
	for i := 1; i <= m; i++ {
		add(models.InterviewTechnical2, i, &models.ResponseRecord{
			Response: fmt.Sprintf("analysis %d", i),
			Metadata: map[string]any{"completed": false},
		})
	}
	for i := 1; i <= n; i++ {
		add(models.InterviewBehavioural, i, &models.ResponseRecord{
			ChatHistory: []models.ChatTurn{
				{Role: models.RoleInterviewer, Text: "How would you handle it?"},
				{Role: models.RoleCandidate, Text: fmt.Sprintf("answer %d", i)},
			},
			Response: "[]",
			Metadata: map[string]any{"question": "Two engineers disagree."},
		})
	}
}

func TestRecommendNotFound(t *testing.T) {
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		t.Fatal("evaluator must not be called without records")
		return nil, nil
	})
	a := NewAssembler(storage.NewMemoryRepository(), ev, nil, Config{})

	_, err := a.Recommend(context.Background(), &models.RecommendRequest{CandidateEmail: "nobody@x.com"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = a.Recommend(context.Background(), &models.RecommendRequest{})
	if !models.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestRecommendIncludesEveryRecord(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "a@x.com", 3, 2, 4)

	var prompt string
	var got *evaluator.Request
	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		got = req
		prompt = req.Messages[0].Content
		return &evaluator.Completion{Text: validReply}, nil
	})

	a := NewAssembler(repo, ev, nil, Config{})
	result, err := a.Recommend(context.Background(), &models.RecommendRequest{
		CandidateEmail: " A@X.com ",
		JobRequirements: []models.JobRequirement{
			{Quality: "Go expertise", Importance: models.ImportanceCritical},
		},
		CultureValues: []models.CultureValue{
			{Value: "Ownership", Description: "We finish what we start"},
		},
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if result.Decision != models.DecisionHire || result.BehavioralScore != 9 {
		t.Errorf("unexpected result: %+v", result)
	}
	if got.MaxTokens != 2000 || got.Temperature != 0.3 {
		t.Errorf("unexpected call parameters: %d, %v", got.MaxTokens, got.Temperature)
	}

	for i := 1; i <= 3; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("Task: technical1 task %d", i)) {
			t.Errorf("technical1 task %d missing", i)
		}
	}
	for i := 1; i <= 2; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("Task: technical2 task %d", i)) {
			t.Errorf("technical2 task %d missing", i)
		}
	}
	for i := 1; i <= 4; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("Scenario: behavioural task %d", i)) {
			t.Errorf("behavioural task %d missing", i)
		}
		if !strings.Contains(prompt, fmt.Sprintf("Candidate: answer %d", i)) {
			t.Errorf("behavioural transcript %d missing", i)
		}
	}

	wantInOrder := []string{
		"CANDIDATE EMAIL: a@x.com",
		"- Go expertise (critical)",
		"- Ownership: We finish what we start",
		"=== TECHNICAL ASSESSMENT 1 - CODING ===",
		"Time Spent: 2m 5s",
		"Completed: Yes",
		"Solution:\nsolution 1",
		"=== TECHNICAL ASSESSMENT 2 - SCENARIOS ===",
		"Difficulty: N/A",
		"Completed: No",
		"Analysis:\nanalysis 1",
		"=== BEHAVIORAL ASSESSMENT ===",
		"Question: Two engineers disagree.",
		"AI: How would you handle it?",
		`"decision": "hire" | "reject" | "review"`,
	}
	pos := 0
	for _, s := range wantInOrder {
		idx := strings.Index(prompt[pos:], s)
		if idx == -1 {
			t.Fatalf("prompt missing %q after offset %d", s, pos)
		}
		pos += idx
	}
}

func TestRecommendNotSpecified(t *testing.T) {
	prompt := BuildContext("a@x.com", nil, nil, Groups{})
	if strings.Count(prompt, "Not specified") != 2 {
		t.Errorf("expected two 'Not specified' sections")
	}
	if strings.Contains(prompt, "=== TECHNICAL") {
		t.Errorf("empty groups should not render sections")
	}
}

func TestRecommendMalformedReply(t *testing.T) {
	replies := []string{
		"I think they should be hired.",
		`{"decision": "maybe", "reasoning": "x", "overallScore": 5, "technicalScore": 5, "behavioralScore": 5, "culturalFit": 5}`,
		`{"decision": "hire", "reasoning": "x", "overallScore": 11, "technicalScore": 5, "behavioralScore": 5, "culturalFit": 5}`,
		`{"decision": "hire", "reasoning": `,
	}

	repo := storage.NewMemoryRepository()
	seed(t, repo, "a@x.com", 1, 0, 0)

	for _, reply := range replies {
		ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
			return &evaluator.Completion{Text: reply}, nil
		})
		a := NewAssembler(repo, ev, nil, Config{})

		_, err := a.Recommend(context.Background(), &models.RecommendRequest{CandidateEmail: "a@x.com"})
		var evalErr *models.EvaluatorError
		if !errors.As(err, &evalErr) || !errors.Is(err, models.ErrMalformedEvaluatorResponse) {
			t.Errorf("reply %q: expected malformed EvaluatorError, got %v", reply, err)
		}
	}
}

func TestRecommendEvaluatorFailure(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "a@x.com", 1, 0, 0)

	ev := evaluator.Func(func(ctx context.Context, req *evaluator.Request) (*evaluator.Completion, error) {
		return nil, errors.New("503 from upstream")
	})
	a := NewAssembler(repo, ev, nil, Config{})

	_, err := a.Recommend(context.Background(), &models.RecommendRequest{CandidateEmail: "a@x.com"})
	var evalErr *models.EvaluatorError
	if !errors.As(err, &evalErr) {
		t.Errorf("expected EvaluatorError, got %v", err)
	}
	if errors.Is(err, models.ErrMalformedEvaluatorResponse) {
		t.Errorf("transport failure reported as malformed reply")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "0m 0s", 59: "0m 59s", 60: "1m 0s", 3725: "62m 5s", -4: "0m 0s"}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%d) = %s, want %s", in, got, want)
		}
	}
}

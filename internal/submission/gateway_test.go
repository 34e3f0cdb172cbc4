package submission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/terra-clan/interview-engine/internal/catalog"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/progress"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// flakyStore fails SaveResponse while down is set
type flakyStore struct {
	*storage.MemoryRepository
	down atomic.Bool
}

func (s *flakyStore) SaveResponse(ctx context.Context, rec *models.ResponseRecord) error {
	if s.down.Load() {
		return errors.New("connection refused")
	}
	return s.MemoryRepository.SaveResponse(ctx, rec)
}

type fixture struct {
	store   *flakyStore
	tracker *progress.Tracker
	gateway *Gateway
	catalog *catalog.Loader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := catalog.NewLoader()
	cat.Add(&models.CatalogTask{
		ID:          "1",
		Stage:       models.InterviewTechnical1,
		Kind:        "coding",
		Title:       "Bug Fix: Payment Processing",
		Description: "Fix the payment bug",
		Difficulty:  "Medium",
	})
	cat.Add(&models.CatalogTask{
		ID:        "1",
		Stage:     models.InterviewBehavioural,
		Kind:      "conversation",
		Title:     "Conflict Resolution",
		Situation: "Two engineers disagree.",
	})

	store := &flakyStore{MemoryRepository: storage.NewMemoryRepository()}
	tracker := progress.NewTracker(progress.NewMemoryStore(), cat, progress.WithRecords(store))
	return &fixture{
		store:   store,
		tracker: tracker,
		gateway: NewGateway(store, tracker, cat),
		catalog: cat,
	}
}

// restart replaces the progress store with an empty one, as after a process restart or TTL expiry
func (f *fixture) restart() {
	f.tracker = progress.NewTracker(progress.NewMemoryStore(), f.catalog, progress.WithRecords(f.store))
	f.gateway = NewGateway(f.store, f.tracker, f.catalog)
}

func codingRequest() *models.SaveResponseRequest {
	return &models.SaveResponseRequest{
		CandidateID:      "cand-1",
		CandidateEmail:   "a@x.com",
		InterviewType:    models.InterviewTechnical1,
		TaskID:           "1",
		TaskTitle:        "Bug Fix: Payment Processing",
		Response:         "fix: return err",
		TimeSpentSeconds: 300,
	}
}

func TestSubmitAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ack, err := f.gateway.Submit(ctx, codingRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if ack.ResponseID == "" {
		t.Error("expected a response id")
	}

	records, err := f.store.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Response != "fix: return err" || rec.InterviewType != models.InterviewTechnical1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.MetaString("difficulty") != "Medium" || rec.MetaString("question") != "Fix the payment bug" {
		t.Errorf("metadata not enriched: %+v", rec.Metadata)
	}

	p, _ := f.tracker.Load(ctx, rec.Key())
	if p.Status != models.ProgressCompleted || p.ResponseID != ack.ResponseID {
		t.Errorf("task not completed: %+v", p)
	}

	if _, err := f.gateway.Submit(ctx, codingRequest()); !errors.Is(err, models.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	records, _ = f.store.FindByEmail(ctx, "a@x.com")
	if len(records) != 1 {
		t.Errorf("expected still 1 record, got %d", len(records))
	}
}

func TestSubmitValidationWritesNothing(t *testing.T) {
	fields := []struct {
		name  string
		clear func(r *models.SaveResponseRequest)
	}{
		{"candidateId", func(r *models.SaveResponseRequest) { r.CandidateID = "" }},
		{"candidateEmail", func(r *models.SaveResponseRequest) { r.CandidateEmail = "  " }},
		{"interviewType", func(r *models.SaveResponseRequest) { r.InterviewType = "" }},
		{"taskId", func(r *models.SaveResponseRequest) { r.TaskID = "" }},
		{"taskTitle", func(r *models.SaveResponseRequest) { r.TaskTitle = "" }},
		{"response", func(r *models.SaveResponseRequest) { r.Response = "" }},
	}

	for _, tt := range fields {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			req := codingRequest()
			tt.clear(req)

			_, err := f.gateway.Submit(ctx, req)
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.name {
				t.Errorf("field = %s, want %s", vErr.Field, tt.name)
			}

			all, _ := f.store.FindByFilter(ctx, models.ResponseFilters{})
			if len(all) != 0 {
				t.Errorf("expected no records, got %d", len(all))
			}
		})
	}
}

func TestSubmitPersistenceErrorLeavesTaskRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewTechnical1, TaskID: "1"}

	if _, err := f.tracker.SaveDraft(ctx, key, "draft"); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	f.store.down.Store(true)
	_, err := f.gateway.Submit(ctx, codingRequest())
	var pErr *models.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	p, _ := f.tracker.Load(ctx, key)
	if p.Status != models.ProgressInProgress || p.Draft != "draft" {
		t.Errorf("task state changed by failed submit: %+v", p)
	}

	f.store.down.Store(false)
	if _, err := f.gateway.Submit(ctx, codingRequest()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestSubmitFallsBackToDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.gateway.now = func() time.Time { return clock.Add(90 * time.Second) }

	key := models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewTechnical1, TaskID: "1"}
	if _, err := f.tracker.SaveDraft(ctx, key, "func fix() error { return err }"); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	req := codingRequest()
	req.Response = ""
	req.TimeSpentSeconds = 0
	future := clock.Add(time.Hour)
	req.StartedAt = &future

	if _, err := f.gateway.Submit(ctx, req); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	records, _ := f.store.FindByEmail(ctx, "a@x.com")
	rec := records[0]
	if rec.Response != "func fix() error { return err }" {
		t.Errorf("draft not used: %q", rec.Response)
	}
	if rec.SubmittedAt.Before(rec.StartedAt) {
		t.Errorf("startedAt %v after submittedAt %v", rec.StartedAt, rec.SubmittedAt)
	}
}

func TestSubmitConversationalFromTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewBehavioural, TaskID: "1"}

	req := &models.SaveResponseRequest{
		CandidateID:    "cand-1",
		CandidateEmail: "a@x.com",
		InterviewType:  models.InterviewBehavioural,
		TaskID:         "1",
		TaskTitle:      "Conflict Resolution",
	}

	// opening only, nothing from the candidate yet
	if _, err := f.tracker.Start(ctx, key, "How would you handle it?"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.gateway.Submit(ctx, req); !models.IsValidation(err) {
		t.Fatalf("expected ValidationError without candidate turn, got %v", err)
	}

	if _, err := f.tracker.AppendCandidateTurn(ctx, key, "I'd get them in a room."); err != nil {
		t.Fatalf("AppendCandidateTurn failed: %v", err)
	}
	if _, err := f.gateway.Submit(ctx, req); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	records, _ := f.store.FindByEmail(ctx, "a@x.com")
	rec := records[0]
	if len(rec.ChatHistory) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(rec.ChatHistory))
	}
	if rec.Response == "" || rec.Response[0] != '[' {
		t.Errorf("expected serialised transcript, got %q", rec.Response)
	}
	if rec.MetaString("conversationLength") != "2" {
		t.Errorf("unexpected conversationLength: %v", rec.Metadata["conversationLength"])
	}

	p, _ := f.tracker.Load(ctx, key)
	if p.Status != models.ProgressCompleted {
		t.Errorf("expected completed, got %s", p.Status)
	}
	if _, err := f.tracker.AppendCandidateTurn(ctx, key, "more"); !errors.Is(err, progress.ErrStageCompleted) {
		t.Errorf("expected frozen transcript, got %v", err)
	}
}

func TestSubmitConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	var wins, dupes atomic.Int32

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gateway.Submit(ctx, codingRequest())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, models.ErrAlreadySubmitted):
				dupes.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || dupes.Load() != n-1 {
		t.Errorf("wins=%d dupes=%d", wins.Load(), dupes.Load())
	}

	records, _ := f.store.FindByEmail(ctx, "a@x.com")
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestSubmittedTaskStaysFrozenAfterProgressLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewTechnical1, TaskID: "1"}

	ack, err := f.gateway.Submit(ctx, codingRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	f.restart()

	p, err := f.tracker.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Status != models.ProgressCompleted || p.ResponseID != ack.ResponseID || p.Draft != "fix: return err" {
		t.Errorf("expected completed state rebuilt from the record, got %+v", p)
	}

	if _, err := f.tracker.SaveDraft(ctx, key, "edited after submission"); !errors.Is(err, progress.ErrStageCompleted) {
		t.Errorf("expected ErrStageCompleted for a draft, got %v", err)
	}
	if _, err := f.tracker.Start(ctx, key, ""); !errors.Is(err, progress.ErrStageCompleted) {
		t.Errorf("expected ErrStageCompleted for a restart, got %v", err)
	}
	if err := f.tracker.Reset(ctx, key); !errors.Is(err, progress.ErrStageCompleted) {
		t.Errorf("expected ErrStageCompleted for a reset, got %v", err)
	}
	if _, err := f.gateway.Submit(ctx, codingRequest()); !errors.Is(err, models.ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}

	overview, err := f.tracker.Overview(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if overview.Stages[0].Status != models.ProgressCompleted {
		t.Errorf("expected technical1 completed, got %s", overview.Stages[0].Status)
	}
}

func TestSubmitRejectsTranscriptDifferentFromTracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.ProgressKey{CandidateEmail: "a@x.com", InterviewType: models.InterviewBehavioural, TaskID: "1"}

	if _, err := f.tracker.Start(ctx, key, "How would you handle it?"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.tracker.AppendCandidateTurn(ctx, key, "I'd get them in a room."); err != nil {
		t.Fatalf("AppendCandidateTurn failed: %v", err)
	}
	if _, err := f.tracker.AppendInterviewerTurn(ctx, key, 1, "What happened next?"); err != nil {
		t.Fatalf("AppendInterviewerTurn failed: %v", err)
	}

	req := &models.SaveResponseRequest{
		CandidateID:    "cand-1",
		CandidateEmail: "a@x.com",
		InterviewType:  models.InterviewBehavioural,
		TaskID:         "1",
		TaskTitle:      "Conflict Resolution",
		ChatHistory: []models.ChatTurn{
			{Role: models.RoleCandidate, Text: "fabricated 1"},
			{Role: models.RoleCandidate, Text: "fabricated 2"},
		},
	}

	_, err := f.gateway.Submit(ctx, req)
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "chatHistory" {
		t.Fatalf("expected chatHistory ValidationError, got %v", err)
	}
	if records, _ := f.store.FindByEmail(ctx, "a@x.com"); len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}

	// Without a client transcript the tracked one is submitted
	req.ChatHistory = nil
	if _, err := f.gateway.Submit(ctx, req); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	records, _ := f.store.FindByEmail(ctx, "a@x.com")
	if len(records) != 1 || len(records[0].ChatHistory) != 3 || records[0].ChatHistory[0].Role != models.RoleInterviewer {
		t.Errorf("unexpected stored transcript: %+v", records)
	}
}

func TestSubmitValidatesClientTranscript(t *testing.T) {
	tests := []struct {
		name  string
		turns []models.ChatTurn
		ok    bool
	}{
		{"opens with candidate", []models.ChatTurn{
			{Role: models.RoleCandidate, Text: "hi"},
			{Role: models.RoleInterviewer, Text: "hello"},
		}, false},
		{"no alternation", []models.ChatTurn{
			{Role: models.RoleInterviewer, Text: "q"},
			{Role: models.RoleCandidate, Text: "a"},
			{Role: models.RoleCandidate, Text: "b"},
		}, false},
		{"empty turn", []models.ChatTurn{
			{Role: models.RoleInterviewer, Text: "q"},
			{Role: models.RoleCandidate, Text: "  "},
		}, false},
		{"well formed", []models.ChatTurn{
			{Role: models.RoleInterviewer, Text: "q"},
			{Role: models.RoleCandidate, Text: "a"},
			{Role: models.RoleInterviewer, Text: "thanks"},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.gateway.Submit(ctx, &models.SaveResponseRequest{
				CandidateID:    "cand-1",
				CandidateEmail: "a@x.com",
				InterviewType:  models.InterviewBehavioural,
				TaskID:         "1",
				TaskTitle:      "Conflict Resolution",
				ChatHistory:    tt.turns,
			})

			if tt.ok {
				if err != nil {
					t.Fatalf("Submit failed: %v", err)
				}
				return
			}
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) || vErr.Field != "chatHistory" {
				t.Fatalf("expected chatHistory ValidationError, got %v", err)
			}
		})
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

func newRecord(email string, it models.InterviewType, task string) *models.ResponseRecord {
	now := time.Now().UTC()
	return &models.ResponseRecord{
		CandidateID:    "cand-" + email,
		CandidateEmail: email,
		InterviewType:  it,
		TaskID:         models.TaskID(task),
		TaskTitle:      "Task " + task,
		Response:       "fix: return err",
		Metadata:       map[string]any{"difficulty": "Medium"},
		StartedAt:      now.Add(-time.Minute),
		SubmittedAt:    now,
	}
}

func TestMemorySaveAssignsIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	rec := newRecord(" A@X.com ", models.InterviewTechnical1, "1")

	if err := repo.SaveResponse(context.Background(), rec); err != nil {
		t.Fatalf("SaveResponse failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be assigned")
	}

	got, err := repo.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Response != "fix: return err" || got[0].InterviewType != models.InterviewTechnical1 {
		t.Errorf("unexpected record: %+v", got[0])
	}
}

func TestMemorySaveRejectsDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.SaveResponse(ctx, newRecord("a@x.com", models.InterviewTechnical1, "1")); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	err := repo.SaveResponse(ctx, newRecord("A@x.com", models.InterviewTechnical1, "1"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same task in another stage is a different key
	if err := repo.SaveResponse(ctx, newRecord("a@x.com", models.InterviewTechnical2, "1")); err != nil {
		t.Fatalf("save in other stage failed: %v", err)
	}

	got, _ := repo.FindByEmail(ctx, "a@x.com")
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestMemorySaveValidation(t *testing.T) {
	repo := NewMemoryRepository()
	rec := newRecord("a@x.com", models.InterviewTechnical1, "1")
	rec.TaskTitle = ""

	err := repo.SaveResponse(context.Background(), rec)
	if !models.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	got, _ := repo.FindByEmail(context.Background(), "a@x.com")
	if len(got) != 0 {
		t.Errorf("invalid record was written")
	}
}

func TestMemoryFindByEmailOrderAndIdempotence(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	tasks := []struct {
		it   models.InterviewType
		task string
	}{
		{models.InterviewTechnical1, "1"},
		{models.InterviewTechnical1, "2"},
		{models.InterviewTechnical2, "1"},
		{models.InterviewBehavioural, "3"},
	}
	for _, tt := range tasks {
		if err := repo.SaveResponse(ctx, newRecord("a@x.com", tt.it, tt.task)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	_ = repo.SaveResponse(ctx, newRecord("b@x.com", models.InterviewTechnical1, "1"))

	first, err := repo.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if len(first) != len(tasks) {
		t.Fatalf("expected %d records, got %d", len(tasks), len(first))
	}
	for i, tt := range tasks {
		if first[i].InterviewType != tt.it || first[i].TaskID != models.TaskID(tt.task) {
			t.Errorf("record %d = %s/%s, want %s/%s", i, first[i].InterviewType, first[i].TaskID, tt.it, tt.task)
		}
	}

	second, _ := repo.FindByEmail(ctx, "a@x.com")
	if !reflect.DeepEqual(first, second) {
		t.Error("two reads without writes returned different sequences")
	}

	// Mutating a returned record must not leak into the store
	first[0].Metadata["difficulty"] = "Hard"
	third, _ := repo.FindByEmail(ctx, "a@x.com")
	if third[0].MetaString("difficulty") != "Medium" {
		t.Error("returned record shares metadata with the store")
	}
}

func TestMemoryFindByFilter(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		it := models.InterviewTechnical1
		if i%2 == 1 {
			it = models.InterviewBehavioural
		}
		if err := repo.SaveResponse(ctx, newRecord(fmt.Sprintf("c%d@x.com", i), it, "1")); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	all, err := repo.FindByFilter(ctx, models.ResponseFilters{})
	if err != nil {
		t.Fatalf("FindByFilter failed: %v", err)
	}
	if len(all) != models.MaxListResponses {
		t.Errorf("expected cap of %d, got %d", models.MaxListResponses, len(all))
	}
	if all[0].CandidateEmail != "c59@x.com" {
		t.Errorf("expected newest first, got %s", all[0].CandidateEmail)
	}

	behavioural, _ := repo.FindByFilter(ctx, models.ResponseFilters{InterviewType: models.InterviewBehavioural})
	if len(behavioural) != 30 {
		t.Errorf("expected 30 behavioural records, got %d", len(behavioural))
	}
	for _, rec := range behavioural {
		if rec.InterviewType != models.InterviewBehavioural {
			t.Fatalf("filter leaked %s", rec.InterviewType)
		}
	}

	one, _ := repo.FindByFilter(ctx, models.ResponseFilters{CandidateEmail: "C7@x.com"})
	if len(one) != 1 {
		t.Errorf("expected 1 record for c7, got %d", len(one))
	}
}

func TestMemoryConcurrentSaveSingleWinner(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.SaveResponse(ctx, newRecord("race@x.com", models.InterviewTechnical2, "2"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrDuplicate):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || dups != 19 {
		t.Errorf("expected 1 winner and 19 duplicates, got %d/%d", wins, dups)
	}
}

func TestMemoryClients(t *testing.T) {
	repo := NewMemoryRepository(&models.ApiClient{Name: "dashboard", ApiKey: "sk_test_123456", IsActive: true})
	ctx := context.Background()

	c, err := repo.GetClientByApiKey(ctx, "sk_test_123456")
	if err != nil || c == nil {
		t.Fatalf("expected client, got %v, %v", c, err)
	}

	missing, err := repo.GetClientByApiKey(ctx, "sk_nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil client for unknown key, got %v, %v", missing, err)
	}

	if err := repo.UpdateClientLastUsed(ctx, "sk_test_123456"); err != nil {
		t.Fatalf("UpdateClientLastUsed failed: %v", err)
	}
	c, _ = repo.GetClientByApiKey(ctx, "sk_test_123456")
	if c.LastUsedAt == nil {
		t.Error("expected last used timestamp")
	}
}

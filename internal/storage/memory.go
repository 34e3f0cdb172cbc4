package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/interview-engine/internal/models"
)

// MemoryRepository is an in-process Repository for local runs and tests.
// Records are deep-copied on the way in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []*models.ResponseRecord
	keys    map[models.ProgressKey]struct{}
	clients map[string]*models.ApiClient
	now     func() time.Time
	last    time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository(clients ...*models.ApiClient) *MemoryRepository {
	r := &MemoryRepository{
		keys:    make(map[models.ProgressKey]struct{}),
		clients: make(map[string]*models.ApiClient),
		now:     time.Now,
	}
	for _, c := range clients {
		r.clients[c.ApiKey] = c
	}
	return r
}

// SaveResponse stores rec unless its key is already taken
func (r *MemoryRepository) SaveResponse(ctx context.Context, rec *models.ResponseRecord) error {
	rec.CandidateEmail = models.NormalizeEmail(rec.CandidateEmail)
	if err := rec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := rec.Key().Normalize()
	if _, exists := r.keys[key]; exists {
		return ErrDuplicate
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = r.nextCreatedAt()

	stored, err := copyRecord(rec)
	if err != nil {
		return err
	}

	r.keys[key] = struct{}{}
	r.records = append(r.records, stored)
	return nil
}

// FindByEmail returns the candidate's records in insertion order
func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) ([]*models.ResponseRecord, error) {
	email = models.NormalizeEmail(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.ResponseRecord, 0)
	for _, rec := range r.records {
		if rec.CandidateEmail != email {
			continue
		}
		c, err := copyRecord(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// FindByFilter returns matching records newest first
func (r *MemoryRepository) FindByFilter(ctx context.Context, filters models.ResponseFilters) ([]*models.ResponseRecord, error) {
	email := models.NormalizeEmail(filters.CandidateEmail)
	limit := filters.EffectiveLimit()

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.ResponseRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(result) < limit; i-- {
		rec := r.records[i]
		if email != "" && rec.CandidateEmail != email {
			continue
		}
		if filters.InterviewType != "" && rec.InterviewType != filters.InterviewType {
			continue
		}
		c, err := copyRecord(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	return result, nil
}

// FindByKey returns the record stored under key, nil when none
func (r *MemoryRepository) FindByKey(ctx context.Context, key models.ProgressKey) (*models.ResponseRecord, error) {
	key = key.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.keys[key]; !exists {
		return nil, nil
	}
	for _, rec := range r.records {
		if rec.Key().Normalize() == key {
			return copyRecord(rec)
		}
	}
	return nil, nil
}

// nextCreatedAt keeps creation times strictly increasing in insertion order
func (r *MemoryRepository) nextCreatedAt() time.Time {
	t := r.now().UTC()
	if !t.After(r.last) {
		t = r.last.Add(time.Microsecond)
	}
	r.last = t
	return t
}

// GetClientByApiKey returns the client registered with apiKey, nil when unknown
func (r *MemoryRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

// UpdateClientLastUsed stamps the client's last use
func (r *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[apiKey]; ok {
		now := r.now().UTC()
		c.LastUsedAt = &now
	}
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// copyRecord round-trips the record through JSON so metadata maps are not shared
func copyRecord(rec *models.ResponseRecord) (*models.ResponseRecord, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var c models.ResponseRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

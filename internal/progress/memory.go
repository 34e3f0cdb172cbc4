package progress

import (
	"context"
	"sync"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// MemoryStore keeps progress in process memory
type MemoryStore struct {
	mu    sync.Mutex
	items map[models.ProgressKey]*models.StageProgress
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[models.ProgressKey]*models.StageProgress),
		now:   time.Now,
	}
}

// Load returns a copy of the stored progress
func (s *MemoryStore) Load(ctx context.Context, key models.ProgressKey) (*models.StageProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// Update applies fn under the store lock
func (s *MemoryStore) Update(ctx context.Context, key models.ProgressKey, fn UpdateFunc) (*models.StageProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p *models.StageProgress
	if stored, ok := s.items[key]; ok {
		p = stored.Clone()
	} else {
		p = models.NewStageProgress(key)
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	s.items[key] = p.Clone()
	return p, nil
}

// Clear drops the progress for key
func (s *MemoryStore) Clear(ctx context.Context, key models.ProgressKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Prune removes unfinished progress not touched for longer than idle.
// Completed entries are kept so a finished task stays read-only.
func (s *MemoryStore) Prune(ctx context.Context, idle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for key, p := range s.items {
		if p.Status.IsTerminal() {
			continue
		}
		if p.UpdatedAt.Before(cutoff) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked tasks
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

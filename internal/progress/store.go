package progress

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// ErrConflict is returned when an update kept losing to concurrent writers
var ErrConflict = errors.New("progress update conflict")

// UpdateFunc mutates the current progress in place; returning an error aborts the write
type UpdateFunc func(p *models.StageProgress) error

// Store persists stage progress between requests
type Store interface {
	// Load returns the stored progress, nil when nothing is stored for key
	Load(ctx context.Context, key models.ProgressKey) (*models.StageProgress, error)

	// Update runs fn against the current progress (NotStarted when absent)
	// and saves the result atomically with respect to other updates of key
	Update(ctx context.Context, key models.ProgressKey, fn UpdateFunc) (*models.StageProgress, error)

	// Clear removes the stored progress for key
	Clear(ctx context.Context, key models.ProgressKey) error
}

// Pruner is implemented by stores that do not expire entries on their own
type Pruner interface {
	Prune(ctx context.Context, idle time.Duration) (int, error)
}

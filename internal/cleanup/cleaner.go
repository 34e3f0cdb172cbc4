package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/interview-engine/internal/progress"
)

// Cleaner periodically drops unfinished progress that nobody touched for a while.
// Only needed for stores without their own expiry (the in-process store).
type Cleaner struct {
	pruner   progress.Pruner
	interval time.Duration
	idle     time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(pruner progress.Pruner, interval, idle time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if idle <= 0 {
		idle = 7 * 24 * time.Hour
	}

	return &Cleaner{
		pruner:   pruner,
		interval: interval,
		idle:     idle,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "idle", c.idle)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup prunes idle progress once
func (c *Cleaner) cleanup(ctx context.Context) int {
	slog.Debug("running cleanup cycle")

	removed, err := c.pruner.Prune(ctx, c.idle)
	if err != nil {
		slog.Error("failed to prune idle progress", "error", err)
		return 0
	}

	if removed == 0 {
		slog.Debug("no idle progress found")
		return 0
	}

	slog.Info("idle progress pruned", "count", removed, "idle", c.idle)
	return removed
}

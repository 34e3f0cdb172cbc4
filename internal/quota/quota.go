package quota

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBudgetExceeded is returned when the token budget is (nearly) exhausted
var ErrBudgetExceeded = errors.New("token budget exceeded")

// DefaultThreshold is the fraction of the budget after which calls are refused
const DefaultThreshold = 0.9

// Counter stores cumulative token usage
type Counter interface {
	Used(ctx context.Context) (int64, error)
	Add(ctx context.Context, tokens int64) (int64, error)
}

// Budget gates evaluator calls on cumulative token usage
type Budget struct {
	counter   Counter
	limit     int64
	threshold float64
}

// NewBudget creates a budget of limit tokens over counter.
// A non-positive limit disables the check.
func NewBudget(counter Counter, limit int64, threshold float64) *Budget {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Budget{
		counter:   counter,
		limit:     limit,
		threshold: threshold,
	}
}

// Check refuses when usage is above threshold * limit
func (b *Budget) Check(ctx context.Context) error {
	if b == nil || b.limit <= 0 {
		return nil
	}

	used, err := b.counter.Used(ctx)
	if err != nil {
		return fmt.Errorf("failed to read token usage: %w", err)
	}

	if float64(used) > float64(b.limit)*b.threshold {
		return fmt.Errorf("%w: %d of %d tokens used", ErrBudgetExceeded, used, b.limit)
	}
	return nil
}

// Record adds tokens and returns the new cumulative total
func (b *Budget) Record(ctx context.Context, tokens int) (int64, error) {
	if b == nil {
		return 0, nil
	}
	if tokens <= 0 {
		return b.counter.Used(ctx)
	}
	return b.counter.Add(ctx, int64(tokens))
}

// Used returns the cumulative total
func (b *Budget) Used(ctx context.Context) (int64, error) {
	if b == nil {
		return 0, nil
	}
	return b.counter.Used(ctx)
}

// Limit returns the configured budget
func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}

// MemoryCounter is a process-local counter
type MemoryCounter struct {
	used atomic.Int64
}

// NewMemoryCounter creates an empty counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

// Used returns the current total
func (c *MemoryCounter) Used(ctx context.Context) (int64, error) {
	return c.used.Load(), nil
}

// Add increments the total
func (c *MemoryCounter) Add(ctx context.Context, tokens int64) (int64, error) {
	return c.used.Add(tokens), nil
}

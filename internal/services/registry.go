package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 3 * time.Second

// Registry manages dependency checkers
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry creates a new dependency registry
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
		timeout:  defaultCheckTimeout,
	}
}

// Register adds a checker to the registry under its name
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
}

// Get retrieves a checker by name
func (r *Registry) Get(name string) Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkers[name]
}

// List returns all registered checker names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a checker from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkers, name)
}

// DependencyStatus is the readiness of one dependency
type DependencyStatus struct {
	Name    string         `json:"name"`
	Healthy bool           `json:"healthy"`
	Error   string         `json:"error,omitempty"`
	Latency string         `json:"latency"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthCheckAll checks every dependency concurrently, each bounded by the registry timeout
func (r *Registry) HealthCheckAll(ctx context.Context) []DependencyStatus {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	results := make([]DependencyStatus, len(checkers))
	var wg sync.WaitGroup

	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = r.check(ctx, c)
		}(i, c)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Healthy reports whether every status is healthy
func Healthy(statuses []DependencyStatus) bool {
	for _, s := range statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

func (r *Registry) check(ctx context.Context, c Checker) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := c.HealthCheck(ctx)
	status := DependencyStatus{
		Name:    c.Name(),
		Healthy: err == nil,
		Latency: time.Since(start).Round(time.Microsecond).String(),
	}

	if err != nil {
		status.Error = err.Error()
		slog.Warn("dependency unhealthy", "dependency", c.Name(), "error", err)
		return status
	}

	if d, ok := c.(Describer); ok {
		details, err := d.Describe(ctx)
		if err != nil {
			slog.Debug("dependency details unavailable", "dependency", c.Name(), "error", err)
		} else {
			status.Details = details
		}
	}

	return status
}

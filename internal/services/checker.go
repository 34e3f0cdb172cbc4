package services

import "context"

// Checker reports whether a dependency is reachable
type Checker interface {
	// Name returns the dependency name shown in readiness output
	Name() string

	// HealthCheck returns nil when the dependency is usable
	HealthCheck(ctx context.Context) error
}

// Describer is implemented by checkers that can report extra facts for readiness output
type Describer interface {
	Describe(ctx context.Context) (map[string]any, error)
}

// BaseChecker provides the name of a checker
type BaseChecker struct {
	name string
}

// Name returns the dependency name
func (c *BaseChecker) Name() string {
	return c.name
}

// CheckFunc adapts a function to the Checker interface
type CheckFunc struct {
	BaseChecker
	fn func(ctx context.Context) error
}

// NewCheckFunc creates a named checker from fn
func NewCheckFunc(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{BaseChecker: BaseChecker{name: name}, fn: fn}
}

// HealthCheck calls fn
func (c *CheckFunc) HealthCheck(ctx context.Context) error {
	return c.fn(ctx)
}

// Package health runs named component checks and aggregates them into
// one system status.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CheckFunc checks one component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one component check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message carries the failure detail for unhealthy components.
	Message string `json:"message,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Status is the aggregated system health.
type Status struct {
	// Status is "ok" when every check passed, "degraded" otherwise.
	Status string `json:"status"`

	// Checks holds the per-component results.
	Checks map[string]CheckResult `json:"checks"`

	// Timestamp is when the checks ran.
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (s *Status) Healthy() bool {
	return s.Status == "ok"
}

// Checker runs registered component checks with a per-check timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds a named component check, replacing any existing one.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every registered check and aggregates the results.
func (c *Checker) Run(ctx context.Context) *Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	status := &Status{
		Status:    "ok",
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
	}

	for name, fn := range checks {
		status.Checks[name] = c.runOne(ctx, fn)
		if status.Checks[name].Status != "ok" {
			status.Status = "degraded"
		}
	}
	return status
}

func (c *Checker) runOne(ctx context.Context, fn CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(checkCtx)
	}()

	select {
	case err := <-errCh:
		result := CheckResult{Status: "ok", Duration: time.Since(start)}
		if err != nil {
			result.Status = "unhealthy"
			result.Message = err.Error()
		}
		return result
	case <-checkCtx.Done():
		return CheckResult{
			Status:   "unhealthy",
			Message:  fmt.Sprintf("check timed out after %s", c.timeout),
			Duration: time.Since(start),
		}
	}
}

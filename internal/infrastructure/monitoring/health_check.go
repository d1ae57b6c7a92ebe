package monitoring

import (
	"context"
	"sync"
	"time"
)

// HealthChecker aggregates the liveness checks the control API exposes:
// session registry reachability and reactor responsiveness.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []healthCheck
}

type healthCheck struct {
	name    string
	check   func(ctx context.Context) error
	timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, timeout time.Duration, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, healthCheck{name: name, check: check, timeout: timeout})
}

// CheckAll runs every registered check and reports the aggregate. A
// single failing check marks the whole status unhealthy.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.check(checkCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[c.name] = err.Error()
			continue
		}
		status.Checks[c.name] = "healthy"
	}

	return status
}

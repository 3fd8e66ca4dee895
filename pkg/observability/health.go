package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// CheckFunc probes one dependency, e.g. the session store or the
// generation backend.
type CheckFunc func(context.Context) error

// HealthChecker runs registered dependency checks on demand.
type HealthChecker struct {
	checks map[string]CheckFunc
	mu     sync.RWMutex
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc)}
}

// Register adds a named dependency check.
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// CheckStatus is the reported state of one dependency check.
type CheckStatus struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// SystemInfo carries basic runtime information.
type SystemInfo struct {
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemAllocMB    uint64 `json:"mem_alloc_mb"`
}

// Run executes all registered checks with a per-check timeout.
func (h *HealthChecker) Run(ctx context.Context) HealthResponse {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckStatus, len(checks)),
	}

	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := fn(checkCtx)
		cancel()

		status := CheckStatus{Status: HealthStatusHealthy}
		if err != nil {
			status = CheckStatus{Status: HealthStatusUnhealthy, Message: err.Error()}
			resp.Status = HealthStatusUnhealthy
		}
		resp.Checks[name] = status
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.System = SystemInfo{
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemAllocMB:    mem.Alloc / 1024 / 1024,
	}

	return resp
}

// Handler returns the health endpoint handler.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Run(r.Context())

		code := http.StatusOK
		if resp.Status != HealthStatusHealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// LivenessHandler reports process liveness only.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

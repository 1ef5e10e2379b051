package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Checker returns an error if the dependency it probes is unavailable.
type Checker func(ctx context.Context) error

// DefaultTimeout bounds each readiness check.
const DefaultTimeout = 3 * time.Second

// PingHandler returns a simple 200 OK for liveness (no checks).
func PingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

// Readiness runs named checks on each request.
type Readiness struct {
	checks  map[string]Checker
	timeout time.Duration
}

// NewReadiness returns a readiness handler over checks. Nil checkers are skipped.
func NewReadiness(checks map[string]Checker) *Readiness {
	return &Readiness{checks: checks, timeout: DefaultTimeout}
}

// ServeHTTP runs every check and returns 200 if all pass, 503 otherwise.
func (r *Readiness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	names := make([]string, 0, len(r.checks))
	for name, check := range r.checks {
		if check != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(req.Context(), r.timeout)
		err := r.checks[name](ctx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	resp := map[string]any{"status": "ready", "checks": results}
	if status != http.StatusOK {
		resp["status"] = "not_ready"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

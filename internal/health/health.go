// Package health serves the probe endpoints of the conversation backend.
//
// /healthz reports process liveness and always answers 200; deployment
// probes use it to tell a crashed instance from a slow one. /readyz runs the
// registered dependency checks (the conversation store's database pool when
// Postgres is configured) and answers 503 until every check passes, keeping
// traffic away from an instance whose storage is still coming up.
//
// Readiness responses carry a per-check breakdown:
//
//	{"status":"fail","checks":{"database":{"status":"fail","detail":"connection refused"}}}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// defaultTimeout bounds a readiness check that does not set its own Timeout.
const defaultTimeout = 5 * time.Second

// Checker is a named readiness check for one dependency.
type Checker struct {
	// Name identifies the dependency in the JSON response ("database").
	Name string

	// Check probes the dependency, returning nil when it is usable. It must
	// respect context cancellation.
	Check func(ctx context.Context) error

	// Timeout bounds this check. Zero means defaultTimeout.
	Timeout time.Duration
}

// checkStatus is the per-dependency entry of a readiness report.
type checkStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// report is the JSON response body for both probe endpoints.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkStatus `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz routes. The checker list is fixed
// at construction time, so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every registered checker and answers 200 only when all pass.
// The checkers run concurrently, each under its own timeout, so one stalled
// dependency cannot delay the report past its own deadline.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeout := c.Timeout
			if timeout <= 0 {
				timeout = defaultTimeout
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			errs[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	res := report{
		Status: "ok",
		Checks: make(map[string]checkStatus, len(h.checkers)),
	}
	status := http.StatusOK
	for i, c := range h.checkers {
		if err := errs[i]; err != nil {
			res.Checks[c.Name] = checkStatus{Status: "fail", Detail: err.Error()}
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			res.Checks[c.Name] = checkStatus{Status: "ok"}
		}
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// SPDX-License-Identifier: MIT

// Package health provides the liveness surface for the optional ops
// listener and the pre-flight checks run before a batch starts.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
)

// Status grades a component or the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses so aggregation can keep the worst one.
func severity(s Status) int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	if severity(b) > severity(a) {
		return b
	}
	return a
}

// CheckResult is one component's verdict.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checker is a named component check. Checks must be cheap: the ops
// listener calls them on every verbose /healthz hit.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UptimeS   int64                  `json:"uptime_s"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Manager aggregates component checkers behind one liveness answer.
type Manager struct {
	version  string
	started  time.Time
	checkers []Checker
}

// NewManager returns a Manager stamped with the build version.
func NewManager(version string) *Manager {
	return &Manager{version: version, started: time.Now()}
}

// RegisterChecker adds a component check. Not safe to call once the
// listener is serving; register everything during startup.
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health reports liveness. Being able to answer at all is the
// baseline; verbose mode additionally runs the component checks, and
// the worst component verdict becomes the overall status.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		UptimeS:   int64(time.Since(m.started).Seconds()),
	}
	if verbose {
		resp.Status, resp.Checks = m.runChecks(ctx)
	}
	return resp
}

func (m *Manager) runChecks(ctx context.Context) (Status, map[string]CheckResult) {
	if len(m.checkers) == 0 {
		return StatusHealthy, nil
	}
	overall := StatusHealthy
	results := make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		res := c.Check(ctx)
		results[c.Name()] = res
		overall = worse(overall, res.Status)
	}
	return overall, results
}

// ServeHealth answers /healthz. The status code is always 200: a
// degraded pool should not make orchestrators restart the process.
// Pass ?verbose=true for component detail.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	resp := m.Health(r.Context(), r.URL.Query().Get("verbose") == "true")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithComponentFromContext(r.Context(), "health").Error().
			Str("event", "health.encode_error").
			Err(err).
			Msg("failed to encode health response")
	}
}

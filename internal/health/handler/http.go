// Package handler serves liveness and readiness probes.
package handler

import (
	"context"
	"net/http"
	"time"

	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/platform/httpx"
)

const probeTimeout = 2 * time.Second

// Pinger checks a dependency is reachable. *sql.DB and *ratelimit.LoginThrottle implement it
// through the adapters below.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the policy engine evaluates. *engine.OPAEvaluator implements it.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Server answers /healthz and /readyz. Nil dependencies are skipped.
type Server struct {
	db       Pinger
	policy   PolicyChecker
	throttle Pinger
	log      *logging.Logger
}

// NewServer returns a health Server.
func NewServer(db Pinger, policy PolicyChecker, throttle Pinger, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{db: db, policy: policy, throttle: throttle, log: log}
}

type status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live reports the process is up.
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, status{Status: "ok"})
}

// Ready reports whether every dependency answers. 503 with per-check detail otherwise.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	run := func(name string, check func(context.Context) error) {
		if err := check(ctx); err != nil {
			s.log.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "unavailable"
			healthy = false
			return
		}
		checks[name] = "ok"
	}
	if s.db != nil {
		run("database", s.db.PingContext)
	}
	if s.policy != nil {
		run("policy", s.policy.HealthCheck)
	}
	if s.throttle != nil {
		run("throttle", s.throttle.PingContext)
	}

	if !healthy {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, status{Status: "unavailable", Checks: checks})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status{Status: "ok", Checks: checks})
}

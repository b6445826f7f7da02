package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"housefin/internal/core"
	applog "housefin/internal/log"
)

const pingTimeout = 2 * time.Second

// HealthResponse is the body of GET /health. Secrets are only reported as
// booleans.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Database  DatabaseHealth `json:"database"`
	Config    ConfigHealth   `json:"config"`
}

type DatabaseHealth struct {
	Backend   string `json:"backend"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type ConfigHealth struct {
	SecretKeyConfigured   bool   `json:"secret_key_configured"`
	DatabaseURLConfigured bool   `json:"database_url_configured"`
	AMQPEnabled           bool   `json:"amqp_enabled"`
	RateLimitBackend      string `json:"rate_limit_backend"`
}

// handleLiveness performs basic liveness check
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports whether the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := s.pingStore(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleHealth reports process and database status. It answers 503 when
// the store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Database: DatabaseHealth{
			Backend: s.store.Driver().String(),
			Status:  "connected",
		},
		Config: ConfigHealth{
			SecretKeyConfigured:   s.cfg.SecretKey != "",
			DatabaseURLConfigured: s.cfg.DatabaseURL != "",
			AMQPEnabled:           s.cfg.AMQPEnabled(),
			RateLimitBackend:      "disabled",
		},
	}
	if s.limiter != nil {
		resp.Config.RateLimitBackend = s.limiter.Backend()
	}

	status := http.StatusOK
	latency, err := s.pingStore(r.Context())
	resp.Database.LatencyMs = latency.Milliseconds()
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentHealth).WarnContext(r.Context(),
			"Health check failed", errFields(err)...)
		status = http.StatusServiceUnavailable
		resp.Status = "degraded"
		resp.Database.Status = "unavailable"
		resp.Database.Error = pingFailure(err)
	}

	NewResponse().Status(status).JSON(resp).Write(w)
}

func (s *Server) pingStore(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	start := time.Now()
	err := s.store.Ping(ctx)
	return time.Since(start), err
}

// pingFailure describes a ping error without echoing driver messages,
// which may contain connection details.
func pingFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, core.ErrConnection):
		return core.ErrConnection.Error()
	default:
		return "ping failed"
	}
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	uptime := time.Since(s.startedAt)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	if s.limiter != nil {
		rl := s.limiter.GetMetrics()
		fmt.Fprintf(w, "# HELP login_attempts_total Login and token attempts seen by the rate limiter\n")
		fmt.Fprintf(w, "# TYPE login_attempts_total counter\n")
		fmt.Fprintf(w, "login_attempts_total{result=\"allowed\"} %d\n", rl.Allowed)
		fmt.Fprintf(w, "login_attempts_total{result=\"rejected\"} %d\n\n", rl.Rejected)

		fmt.Fprintf(w, "# HELP rate_limit_counter_errors_total Failed rate limit counter updates\n")
		fmt.Fprintf(w, "# TYPE rate_limit_counter_errors_total counter\n")
		fmt.Fprintf(w, "rate_limit_counter_errors_total{backend=%q} %d\n\n", s.limiter.Backend(), rl.CounterErrors)
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", Page{
		Title:   "Home expenses, shared fairly",
		User:    userRef(r),
		Message: flashMessage(r),
	})
}

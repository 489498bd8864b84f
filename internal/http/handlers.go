package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sobres/internal/core"
)

// layout is embedded in every page view.
type layout struct {
	Title  string
	Active string
	Locale core.Locale
	// PollSeconds drives the hx-trigger of the polled panels.
	PollSeconds int
	// Errors is set only when nothing on the page could be loaded.
	Errors []string
}

func (s *Server) layout(title, active string, loadErr error) layout {
	return layout{
		Title:       title,
		Active:      active,
		Locale:      s.prefs.Locale(),
		PollSeconds: int(s.pollInterval / time.Second),
		Errors:      outage(loadErr),
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the backend and reports the middleware counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{"templates": "ok"}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["rate_limiter"] = s.limiter.GetMetrics()
	checks["requests"] = s.tracer.GetMetrics()
	checks["suspicious_requests"] = s.detector.GetMetrics().SuspiciousRequests

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

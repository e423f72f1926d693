package handlers

import (
	"net/http"

	"notesearch/internal/contextutil"
	"notesearch/internal/llm"
)

// StatusReporter exposes model readiness.
type StatusReporter interface {
	Status() llm.Status
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	reporter StatusReporter
}

// NewHealthHandler creates a new HealthHandler. A nil reporter always reports ok.
func NewHealthHandler(reporter StatusReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// "loading", "ok" or "failed"
	Status string `json:"status"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /health healthCheck
//
// Returns 200 once the service can answer requests, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := llm.StatusOK
	if h.reporter != nil {
		status = h.reporter.Status()
	}

	httpStatus := http.StatusOK
	if status != llm.StatusOK {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(status)})
}

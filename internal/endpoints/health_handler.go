package endpoints

import (
	"context"
	"net/http"
	"time"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/util"
)

// HealthTimeout bounds the database probe made by the health endpoint.
const HealthTimeout = 2 * time.Second

// Routes is the public endpoint list shown by the banner and 404 bodies.
var Routes = []string{
	"GET /",
	"GET /health",
	"POST /api/data",
	"GET /api/metrics",
	"GET /api/metrics/latest",
	"GET /api/metrics/complete",
	"GET /api/metrics/{category}",
	"GET /api/metrics/{category}/history?limit=N",
	"GET /api/stats",
	"GET /metrics",
}

type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	API       string `json:"api"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

type Health struct {
	Response APIResponse
	logger   *util.Logger
	store    domain.MetricStore
	now      func() time.Time
	timeout  time.Duration
}

func (h *Health) Init(store domain.MetricStore, webLogger *util.Logger, opts Options) {
	h.store = store
	h.logger = webLogger
	h.now = opts.clock()
	h.timeout = HealthTimeout
	h.Response.API = opts.API
}

// HealthHandler answers 200 when the database responds and 503 otherwise.
func (h *Health) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res := HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		API:       h.Response.API,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.LogEvent(util.LOG_LEVEL_WARN, "Health check failed. Err -", err)
		res.Status = "unhealthy"
		res.Database = "disconnected"
		res.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// RootHandler lists the available endpoints.
func (h *Health) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "System monitoring API",
		"api":     h.Response.API,
		"endpoints": Routes,
	})
}

func (h *Health) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	h.logger.LogEvent(util.LOG_LEVEL_WARN, "No route for", r.Method, r.URL.Path)
	res := h.Response
	res.Value = map[string]interface{}{"path": r.URL.Path, "available_endpoints": Routes}
	res.WriteErrorResponse(w, ErrRouteNotFound)
}

func (h *Health) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	h.logger.LogEvent(util.LOG_LEVEL_WARN, "Method not allowed", r.Method, r.URL.Path)
	h.Response.WriteErrorResponse(w, ErrMethodNotAllowed)
}

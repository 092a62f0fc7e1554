package api

import (
	"net/http"

	"solvergen/internal/gate"
	"solvergen/internal/health"
	"solvergen/internal/lifecycle"
	"solvergen/internal/observability"
	"solvergen/internal/session"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Coordinator   *lifecycle.Coordinator
	Gate          *gate.Gate
	Flags         *session.Store
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Coordinator, cfg.Gate, cfg.Flags, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Generation endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/generations", authMiddleware(http.HandlerFunc(handler.TriggerGeneration)))
	mux.Handle("GET /v1/generations/current", authMiddleware(http.HandlerFunc(handler.GetGeneration)))
	mux.Handle("DELETE /v1/generations/current", authMiddleware(http.HandlerFunc(handler.StopGeneration)))
	mux.Handle("GET /v1/generations/current/files/{filename}", authMiddleware(http.HandlerFunc(handler.DownloadFile)))

	// Session flag endpoints - auth required
	mux.Handle("PUT /v1/session/flags/{key}", authMiddleware(http.HandlerFunc(handler.SetFlag)))
	mux.Handle("GET /v1/session/flags/{key}", authMiddleware(http.HandlerFunc(handler.GetFlag)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}

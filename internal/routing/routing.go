package routing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trustline/internal/handlers"
	"trustline/internal/middleware"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Operational endpoints
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Report submission and staff views
	mux.HandleFunc("POST /api/reports", h.HandleSubmitReport)
	mux.HandleFunc("GET /api/reports", h.HandleListReports)
	mux.HandleFunc("GET /api/reports/{id}", h.HandleGetReport)

	// Moderation actions against a report
	mux.HandleFunc("POST /api/reports/{id}/actions", h.HandlePerformAction)

	// Audit trail and stats
	mux.HandleFunc("GET /api/audit-log", h.HandleAuditLog)
	mux.HandleFunc("GET /api/stats", h.HandleStats)

	// Token-based restoration of soft-deleted content
	mux.HandleFunc("POST /api/restore", h.HandleRestore)

	// Apply middleware (logging outermost - wraps everything)
	var handler http.Handler = otelhttp.NewHandler(mux, "trustline.http")
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/devauth"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/port"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthChecker is a dependency probed by /healthz.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Sessions *service.Sessions
	Verifier port.TokenVerifier
	// DevTokens enables POST /v1/auth/dev-token when set.
	DevTokens      *devauth.Authority
	Limiter        *RateLimiter
	Health         []HealthChecker
	AllowedOrigins []string
	UpgradeCredits int
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Health, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public
		r.Get("/plans", plansHandler(d.UpgradeCredits))
		r.Get("/prompts/examples", examplePromptsHandler())
		r.Get("/metrics/generation", generationMetricsHandler(d.Metrics))

		if d.DevTokens != nil {
			r.Post("/auth/dev-token", devTokenHandler(d.DevTokens, logger))
		}

		if d.Verifier == nil || d.Sessions == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "workspace unavailable: identity provider not configured")
			}))
			return
		}

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier, logger))

			// Session
			r.Post("/session", openSessionHandler(d.Sessions, logger))
			r.Get("/session", getSessionHandler(d.Sessions, logger))
			r.Delete("/session", closeSessionHandler(d.Sessions, logger))
			r.Post("/session/refresh", refreshSessionHandler(d.Sessions, logger))
			r.Post("/session/navigate", navigateHandler(d.Sessions, logger))
			r.Post("/session/reset", resetHandler(d.Sessions, logger))

			// Documents
			r.With(RateLimit(d.Limiter, "generate", logger)).
				Post("/documents/generate", generateHandler(d.Sessions, logger))
			r.Post("/documents/edit", beginEditHandler(d.Sessions, logger))
			r.Put("/documents/edit", saveEditHandler(d.Sessions, logger))
			r.Delete("/documents/edit", cancelEditHandler(d.Sessions, logger))
			r.Post("/documents/persist", persistHandler(d.Sessions, logger))
			r.Post("/documents/signature", attachSignatureHandler(d.Sessions, logger))
			r.Delete("/documents/signature", clearSignatureHandler(d.Sessions, logger))
			r.Post("/documents/export", exportHandler(d.Sessions, logger))

			// History
			r.Get("/history", listHistoryHandler(d.Sessions, logger))
			r.Delete("/history", deleteAllHistoryHandler(d.Sessions, logger))
			r.Post("/history/{documentId}/select", selectHistoryHandler(d.Sessions, logger))
			r.Delete("/history/{documentId}", deleteHistoryHandler(d.Sessions, logger))

			// Profile & billing
			r.Get("/profile", getProfileHandler(d.Sessions, logger))
			r.Patch("/profile", updateProfileHandler(d.Sessions, logger))
			r.Post("/billing/upgrade", upgradeHandler(d.Sessions, logger))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(checkers []HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "docflow-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		for _, c := range checkers {
			start := time.Now()
			err := c.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health check failed", zap.String("service", c.Name()), zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: c.Name(), Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

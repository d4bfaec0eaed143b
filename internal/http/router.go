package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/crmcal/internal/config"
	"github.com/jw6ventures/crmcal/internal/http/ratelimit"
	"github.com/jw6ventures/crmcal/internal/metrics"
	"github.com/jw6ventures/crmcal/internal/ui"
	"github.com/jw6ventures/crmcal/internal/workspace"
)

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires the health, metrics and API routes.
func NewRouter(cfg *config.Config, health HealthChecker, api *ui.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Gestures arrive in bursts while the pointer moves, so the limit is per
	// member rather than per address.
	mutationLimiter := ratelimit.New(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, 5*time.Minute, ratelimit.ByMember(cfg.TrustedProxies))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(workspace.Middleware)

		r.Get("/grid/sessions/{sid}", api.GetWeek)
		r.Get("/events", api.ListEvents)
		r.Get("/events.ics", api.ExportICS)
		r.Get("/members", api.Members)
		r.Get("/settings", api.Settings)
		r.Get("/calendar/range", api.Range)

		r.Group(func(r chi.Router) {
			r.Use(mutationLimiter.Middleware())

			r.Post("/grid/sessions", api.CreateSession)
			r.Delete("/grid/sessions/{sid}", api.CloseSession)
			r.Post("/grid/sessions/{sid}/drag/start", api.DragStart)
			r.Post("/grid/sessions/{sid}/drag/over", api.DragOver)
			r.Post("/grid/sessions/{sid}/drag/drop", api.Drop)
			r.Post("/grid/sessions/{sid}/drag/end", api.DragEnd)
			r.Post("/grid/sessions/{sid}/resize/start", api.ResizeStart)
			r.Post("/grid/sessions/{sid}/resize/move", api.ResizeMove)
			r.Post("/grid/sessions/{sid}/resize/end", api.ResizeEnd)
			r.Post("/grid/sessions/{sid}/cancel", api.CancelGesture)
			r.Post("/grid/sessions/{sid}/cells/click", api.CellClick)
			r.Post("/grid/sessions/{sid}/events/{id}/click", api.EventClick)

			r.Post("/events", api.CreateEvent)
			r.Patch("/events/{id}", api.UpdateEvent)
			r.Delete("/events/{id}", api.DeleteEvent)
			r.Post("/events/{id}/cancel", api.CancelEvent)
			r.Post("/events/{id}/resume", api.ResumeEvent)
			r.Post("/events/{id}/confirm", api.ConfirmEvent)
			r.Post("/events/{id}/complete", api.CompleteEvent)

			r.Put("/settings", api.SaveSettings)
			r.Post("/calendar/navigate", api.Navigate)
		})
	})

	if len(cfg.CORSAllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", workspace.HeaderWorkspaceID, workspace.HeaderMemberID, middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}).Handler(r)
}

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn("request failed", fields...)
				return
			}
			logger.Debug("request", fields...)
		})
	}
}

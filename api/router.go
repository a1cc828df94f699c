package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/duneflow/perpengine/config"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/realtime"
	"github.com/duneflow/perpengine/tracing"
)

// NewRouter builds the control plane's HTTP router: a single command
// endpoint, a websocket update feed, and ambient health/metrics/key-rotation
// routes.
func NewRouter(cfg *config.Config, commands chan<- frontend.Event, wsManager *realtime.WebSocketManager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(TraceMiddleware)
	r.Use(middleware.RealIP)
	r.Use(zerologLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(middleware.Timeout(60 * time.Second))

	// Request body size limit, defense against memory exhaustion.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, 1048576)
			next.ServeHTTP(w, r)
		})
	})

	h := NewHandler(cfg, commands, wsManager)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"service": "perpengine-api", "status": "running"})
	})
	r.Get("/health", h.HealthHandler)

	if wsManager != nil {
		r.Get("/ws", wsManager.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg))
		r.Use(AuditMiddleware)

		// /command is the one write path that can fan a single request out
		// to an entire fleet of markets: the only route with a rate limit.
		r.With(httprate.LimitByIP(20, time.Minute)).Post("/command", h.CommandHandler)

		r.Get("/metrics", h.MetricsHandler)
		r.Post("/config/rotate-key", h.RotateAPIKeyHandler)
	})

	return r
}

// zerologLogger logs each completed request using zerolog, including the
// trace ID for correlation.
func zerologLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		tracing.Logger(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

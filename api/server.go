/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires the on-demand trigger and the health check onto a chi router.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request, included in logs
  2. RequestLogger:  zerolog logger in the request context
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests
  5. RequireAPIKey:  /api/* only, when an API key is configured

ROUTES:
  GET  /healthz
  POST /api/generate-reports
  GET  /api/generate-reports

SEE ALSO:
  - handlers.go: Handler implementations
  - scheduler.go: the schedule trigger
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         zerolog.Logger
	APIKey         string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", FunctionKeyHeader},
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAPIKey(opts.APIKey))
		r.Post("/generate-reports", h.GenerateReports)
		r.Get("/generate-reports", h.GenerateReports)
	})

	return r
}

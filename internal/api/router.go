package api

import (
	"net/http"
	"time"

	"hardhat-pipeline/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const RequestTimeout = 5 * time.Minute

// NewRouter mounts the JSON API under /api/v1 next to the upload form,
// health check and metrics.
func NewRouter(backend *BackendService, web *WebService, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}))
		backend.AddRoutes(r)
	})

	web.AddRoutes(r)

	return r
}

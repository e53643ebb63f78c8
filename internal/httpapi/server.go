// Package httpapi wires the proxy's HTTP surface: the chi router, its
// middleware stack, and the handlers for /v1/messages,
// /v1/messages/count_tokens, /v1/debug/echo, /v1/debug/routes, and /health.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/digitallysavvy/anthropic-proxy/internal/config"
)

// Version is the version string GET /health reports.
const Version = "1.0.0"

// NewRouter builds the complete HTTP surface bound to cfg.
func NewRouter(cfg *config.ProviderConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "x-api-key", "anthropic-version"},
	}))
	// Per-process token-bucket shielding against runaway local callers.
	r.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(50), 100)))

	h := &handlers{cfg: cfg}

	// /v1/messages deliberately carries no server-side timeout middleware:
	// reasoning-model generations legitimately run for minutes, and the
	// client controls cancellation.
	r.Post("/v1/messages", h.handleMessages)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Post("/v1/messages/count_tokens", h.handleCountTokens)
	})
	r.Post("/v1/debug/echo", h.handleDebugEcho)
	r.Get("/v1/debug/routes", h.handleDebugRoutes)
	r.Get("/health", h.handleHealth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"kind": "not_found", "message": "unknown path " + r.URL.Path},
		})
	})

	return r
}

type handlers struct {
	cfg *config.ProviderConfig
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/satpush/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Operator dashboard (embedded via go:embed)
	if s.cfg.Panel.Enabled {
		r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.Panel.Dir)))
		r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/subscriptions", s.handleListSubscriptions)

		// Control endpoints (bearer token when api.auth is enabled)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
			r.Post("/subscriptions", s.handleAddSubscriptions)
			r.Delete("/subscriptions/{collection}", s.handleRemoveSubscription)
		})

		r.Get("/notifications", s.handleListNotifications)
		r.Get("/connections", s.handleListConnections)
		r.Get("/audit", s.handleListAudit)
	})

	return r
}

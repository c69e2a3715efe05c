package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - caller must be logged in to request one
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Door endpoints
			r.Route("/doors/{id}", func(r chi.Router) {
				r.Get("/", s.handleDoorStatus)
				r.Post("/open", s.handleDoorOpen)
				r.Post("/lock", s.handleDoorLock)
				r.Post("/unlock", s.handleDoorUnlock)
			})

			// Directory endpoints
			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{uuid}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Delete("/", s.handleDeleteUser)
					r.Patch("/access", s.handleUpdateUserAccess)
					r.Post("/fingerprints", s.handleEnrollFingerprint)
				})
			})

			// Access-event endpoints
			r.Get("/events", s.handleListEvents)
			r.Get("/events/device", s.handleAccessLog)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

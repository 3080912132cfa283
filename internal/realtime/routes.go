package realtime

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers push-stream routes with the Chi router.
// Authentication is handled inside the handler to support both the
// token query parameter and the Authorization header.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/stream", handler.HandleStream)
	})
}

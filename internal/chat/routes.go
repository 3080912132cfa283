package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers thread message routes with the Chi router.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/threads/{threadID}/messages", func(r chi.Router) {
		r.Get("/", handler.ListMessages)
		r.Post("/", handler.SendMessage)
	})
}

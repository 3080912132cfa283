package attachment

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers attachment routes with the Chi router.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/messages/{messageID}/attachments", func(r chi.Router) {
		r.Post("/", handler.Upload)
		r.Get("/", handler.List)
	})
	r.Get("/attachments/{attachmentID}/download", handler.Download)
}

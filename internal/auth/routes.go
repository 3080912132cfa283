package auth

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers authentication routes with the Chi router.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handler.Login)
		r.Post("/refresh", handler.Refresh)
		r.Post("/logout", handler.Logout)
	})
}

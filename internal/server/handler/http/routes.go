// Package http provides HTTP routing and middleware configuration
// for the reference auth backend.
package http

import (
	"net/http"

	"github.com/atinyakov/authflow/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
)

// NewRouter constructs the HTTP handler serving the auth API under
// /api/auth. Public endpoints issue sessions; the protected group
// requires a valid access token via bearer header or session cookie.
//
// Routes:
//
//	POST /api/auth/login            → authHandler.Login
//	POST /api/auth/signup           → authHandler.Signup
//	POST /api/auth/token/refresh    → authHandler.Refresh
//	GET  /api/auth/login/{provider} → authHandler.OAuth
//	POST /api/auth/logout           → authHandler.Logout          (protected)
//	GET  /api/auth/check-auth       → authHandler.CheckAuth       (protected)
//	GET  /api/auth/user/@me         → authHandler.Profile         (protected)
//	PUT  /api/auth/user/@me         → authHandler.UpdateProfile   (protected)
//	POST /api/auth/password/update  → authHandler.UpdatePassword  (protected)
func NewRouter(
	authHandler *AuthHandler,
	validator middleware.TokenValidator,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api/auth", func(r chi.Router) {
		// Public endpoints
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.Signup)
		r.Post("/token/refresh", authHandler.Refresh)
		r.Get("/login/{provider}", authHandler.OAuth)

		// Protected group: requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(validator))
			r.Post("/logout", authHandler.Logout)
			r.Get("/check-auth", authHandler.CheckAuth)
			r.Get("/user/@me", authHandler.Profile)
			r.Put("/user/@me", authHandler.UpdateProfile)
			r.Post("/password/update", authHandler.UpdatePassword)
		})
	})

	return r
}

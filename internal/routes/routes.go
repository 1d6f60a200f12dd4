package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/palisadehq/palisade/internal/auth"
	"github.com/palisadehq/palisade/internal/handlers"
	"github.com/palisadehq/palisade/internal/middleware"
)

// RegisterRoutes registers the security API surface
func RegisterRoutes(
	router chi.Router,
	securityHandler *handlers.SecurityHandler,
	policyHandler *handlers.PolicyHandler,
	verifier *auth.TokenVerifier,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Route("/v1/security", func(r chi.Router) {
		// Attempt recording is necessarily pre-authentication; it is gated by
		// per-IP admission only.
		r.With(middleware.RateLimitByIP(rateLimitConfig)).
			Post("/attempts", securityHandler.RecordAttempt)

		// Everything else requires an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(verifier))
			r.Use(middleware.RateLimitByCaller(rateLimitConfig))

			r.Get("/lockouts/{subjectKey}", securityHandler.GetLockoutStatus)
			r.Delete("/lockouts/{subjectKey}", securityHandler.ResetLockout)

			r.Get("/policies/{subjectKey}", policyHandler.GetPolicy)
			r.Put("/policies/{subjectKey}", policyHandler.UpdatePolicy)
		})
	})
}

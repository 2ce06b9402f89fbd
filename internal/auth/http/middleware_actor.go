package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

const adminRole = domain.RoleAdmin

// ActorMiddleware turns verified access-token claims into the request's
// domain.Actor. It must run after httpx.AuthnMiddleware.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.ClaimsFromContext(r.Context())
		if !ok || claims.Subject == "" {
			httpx.WriteBearerError(w, "missing claims")
			return
		}
		ctx := domain.WithActor(r.Context(), domain.Actor{ID: claims.Subject, Roles: claims.Roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects actors lacking role with 403.
func RequireRole(role string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := domain.ActorFromContext(r.Context())
			if !ok || !actor.HasRole(role) {
				authsdk.ErrForbidden.WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

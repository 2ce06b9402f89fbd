package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"

	_ "github.com/aussiebroadwan/authflow/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	// Cache is checked by /readyz when set.
	Cache Pinger

	TokenService  *service.TokenService
	ActionService *service.ActionService
	ActionIssuer  *service.ActionTokenIssuer
	UserService   *service.UserService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerActions()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Authflow Authentication Service API
//	@version		0.1.0
//	@description	Credential exchange with single-use refresh tokens, and asynchronous account actions
//	@description	(email verification, password reset) redeemed from signed one-time links.
//	@description
//	@description				Access and action tokens are signed with EdDSA (Ed25519) and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/authflow
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated verifies the bearer token and exposes the caller as a
// domain.Actor.
func (r *Router) authenticated(h http.HandlerFunc, mws ...httpx.Middleware) http.Handler {
	chain := append([]httpx.Middleware{httpx.AuthnMiddleware(r.verifier), ActorMiddleware}, mws...)
	return httpx.ChainFunc(h, chain...)
}

func (r *Router) registerAuth() {
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/token", tokenHandler)

	resetHandler := &PasswordResetHandler{Issuer: r.ActionIssuer}
	r.Mux.Handle("POST /v1/auth/password-reset", resetHandler)

	r.Mux.Handle("GET /.well-known/jwks.json", JWKSHandler(r.keys))
}

func (r *Router) registerActions() {
	h := &ActionsHandler{ActionService: r.ActionService, Issuer: r.ActionIssuer}

	r.Mux.HandleFunc("POST /v1/actions", h.HandleRedeem)
	r.Mux.HandleFunc("GET /v1/actions/{id}", h.HandleGet)

	// Resending a link is an operator task.
	r.Mux.Handle("POST /v1/tokens/{id}/resend", r.authenticated(h.HandleResend, RequireRole(adminRole)))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	r.Mux.HandleFunc("POST /v1/users", h.HandleRegister)
	r.Mux.Handle("GET /v1/users", r.authenticated(h.HandleList, RequireRole(adminRole)))
	r.Mux.Handle("GET /v1/users/{id}", r.authenticated(h.HandleGet))
	r.Mux.Handle("POST /v1/users/{id}/email", r.authenticated(h.HandleEmailChange))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Cache, r.keys))
}

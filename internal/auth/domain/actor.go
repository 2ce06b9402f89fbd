package domain

import (
	"context"
	"slices"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// CanManage reports whether a may act on behalf of userID.
func (a Actor) CanManage(userID string) bool {
	return a.ID == userID || a.HasRole(RoleAdmin)
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor of the current request, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

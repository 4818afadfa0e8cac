package shared

import "context"

// Actor is the authenticated account snapshot threaded through a request.
// Authorization and audit code receive it explicitly; there is no ambient
// "current user" lookup.
type Actor struct {
	ID                 int64
	Username           string
	Email              string
	BaseRole           string
	DynamicRoleID      *int64
	MustChangePassword bool
	IsActive           bool
	// ImpersonatedBy is the admin account behind this session's
	// credentials, set only when they were issued via impersonation.
	ImpersonatedBy *int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when unauthenticated.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}

package contextx

import "context"

// Actor is the authenticated creator behind a request, populated by the
// authentication interceptor or middleware from a verified token. Write paths
// compare Username with the owner of the record being changed.
type Actor struct {
	Subject  string
	Username string
	Admin    bool
}

// WithActor returns a derived context that carries the given Actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext extracts the Actor stored in ctx.
// The boolean return value indicates whether an Actor was present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

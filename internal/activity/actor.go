package activity

import "context"

type actorKey struct{}

// WithActor attaches the acting user to ctx; store mutations record it in the log.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the actor attached to ctx, or DefaultActor.
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

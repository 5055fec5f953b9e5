// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// DefaultActor is used when no actor was supplied by the caller.
const DefaultActor = "operator"

type actorKey struct{}

// WithActor adds the acting operator to context.
// Services still take the actor as an explicit argument; the context copy
// only feeds log enrichment.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// ActorOrDefault returns actorID, or DefaultActor when it is blank.
func ActorOrDefault(actorID string) string {
	if actorID == "" {
		return DefaultActor
	}
	return actorID
}

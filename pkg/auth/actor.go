// Package auth resolves the acting user for every request. Identity is an
// external collaborator; this package only validates the bearer token it
// issued and carries the resulting Actor through the request context.
package auth

import (
	"context"
	"errors"
)

// Actor is the authenticated caller as every orchestrator operation sees it.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func ActorFrom(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok {
		return Actor{}, errors.New("no actor in context")
	}
	return a, nil
}

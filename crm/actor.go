// ABOUTME: Authenticated user carried through the request context
// ABOUTME: Stamps created_by and assigned_to and gates admin-only deletes
package crm

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the authenticated user performing an action.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored in ctx. The zero Actor is returned when
// none was set.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// stamp is the user id written to created_by/assigned_to, or nil for an
// anonymous actor.
func (a Actor) stamp() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

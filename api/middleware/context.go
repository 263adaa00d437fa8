package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
)

type callerKey struct{}

// Caller is the identity Auth resolved from the bearer token.
type Caller struct {
	UserID          uuid.UUID
	Role            enums.ActorRole
	EstablishmentID *uuid.UUID
}

// Establishment returns the partner establishment, or false for callers without one.
func (c Caller) Establishment() (uuid.UUID, bool) {
	if c.EstablishmentID == nil || *c.EstablishmentID == uuid.Nil {
		return uuid.Nil, false
	}
	return *c.EstablishmentID, true
}

// scope identifies the caller in cache keys.
func (c Caller) scope() string {
	est := "-"
	if id, ok := c.Establishment(); ok {
		est = id.String()
	}
	return c.UserID.String() + "|" + est
}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

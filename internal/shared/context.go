package shared

import (
	"context"

	"github.com/google/uuid"
)

type callerContextKey struct{}

// ContextWithCaller stores the authenticated caller identity in context.
func ContextWithCaller(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, callerContextKey{}, userID)
}

// CallerFromContext extracts the caller identity from context. The second
// return is false when the request carried no authenticated identity.
func CallerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerContextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

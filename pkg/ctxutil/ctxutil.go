// Package ctxutil carries request-scoped identity through context: the acting
// user (the moderator scheduling or cancelling a timer) and the request id.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	actingUserKey ctxKey = "acting_user_id"
	requestIDKey  ctxKey = "request_id"
)

// WithActingUser stores the acting user's ID in the context.
func WithActingUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actingUserKey, id)
}

// ActingUserFromCtx extracts the acting user's ID from the context.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func ActingUserFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actingUserKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

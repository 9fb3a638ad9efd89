package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/pkg/enums"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v.String()
	}
	return ""
}

// UserUUIDFromContext returns the authenticated caller.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxUserID).(uuid.UUID)
	return v, ok && v != uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

// WithIdentity injects the caller into the context.
func WithIdentity(ctx context.Context, userID uuid.UUID, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxRole, role)
}

// CallerID returns the authenticated user or an UNAUTHORIZED error.
func CallerID(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserUUIDFromContext(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

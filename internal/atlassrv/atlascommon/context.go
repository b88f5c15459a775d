package atlascommon

import (
	"context"

	"github.com/tansive/atlas/internal/common/uuid"
)

type ctxKeyType string

const (
	ctxUserContextKey ctxKeyType = "AtlasUserContext"
)

// UserContext identifies the authenticated caller of a request.
type UserContext struct {
	UserID uuid.UUID
	Admin  bool
}

func WithUserContext(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, ctxUserContextKey, u)
}

// GetUserContext returns nil when the request is not authenticated.
func GetUserContext(ctx context.Context) *UserContext {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(ctxUserContextKey).(*UserContext)
	return u
}

// GetUserID returns uuid.Nil when the request is not authenticated.
func GetUserID(ctx context.Context) uuid.UUID {
	if u := GetUserContext(ctx); u != nil {
		return u.UserID
	}
	return uuid.Nil
}

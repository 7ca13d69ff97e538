package common

import (
	"context"

	"inkwell/models"
)

type ctxKey int

const currentUserKey ctxKey = iota

// WithUser returns a context carrying the acting user. Service operations read
// the actor from here instead of from the session.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser is nil for anonymous requests.
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(currentUserKey).(*models.User)
	return user
}

// RequireUser is CurrentUser for operations that need a login.
func RequireUser(ctx context.Context) (*models.User, error) {
	user := CurrentUser(ctx)
	if user == nil {
		return nil, ErrUnauthenticated()
	}
	return user, nil
}

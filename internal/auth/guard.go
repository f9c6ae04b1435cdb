package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"quillblog/db"
	"quillblog/internal/session"
	"quillblog/models"
)

// Guard resolves the acting user and enforces access rules.
type Guard struct {
	users    db.UserRepository
	sessions *session.Manager
}

func NewGuard(users db.UserRepository, sessions *session.Manager) *Guard {
	return &Guard{users: users, sessions: sessions}
}

// CurrentUser returns the user bound to the request's session, or nil when the
// session is anonymous or names a user that no longer exists.
func (g *Guard) CurrentUser(r *http.Request) *models.User {
	id, ok := g.sessions.UserID(r)
	if !ok {
		return nil
	}

	user, err := g.users.FindByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Error().Err(err).Int64("user_id", id).Msg("Failed to resolve session user")
		}
		return nil
	}
	return user
}

// RequireAuthenticated fails when nobody is logged in.
func RequireAuthenticated(user *models.User) error {
	if user == nil {
		return models.ErrUnauthenticated
	}
	return nil
}

// RequireOwnership fails unless user authored post.
func RequireOwnership(post *models.Post, user *models.User) error {
	if post == nil {
		return models.ErrNotFound
	}
	if err := RequireAuthenticated(user); err != nil {
		return err
	}
	if !post.IsOwnedBy(user) {
		return models.ErrForbidden
	}
	return nil
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(contextKey{}).(*models.User)
	return user
}

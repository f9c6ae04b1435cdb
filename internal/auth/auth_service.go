package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"quillblog/db"
	"quillblog/internal/session"
	"quillblog/models"
)

// AuthService registers users and binds sessions to them.
type AuthService struct {
	users    db.UserRepository
	sessions *session.Manager
	cost     int

	// dummyHash is checked for unknown usernames so a miss costs as much as a
	// wrong password.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

func NewAuthService(users db.UserRepository, sessions *session.Manager, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("quillblog-no-such-user"), bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prepare placeholder password hash")
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		cost:      bcryptCost,
		dummyHash: dummyHash,
		compare:   bcrypt.CompareHashAndPassword,
	}
}

// Register stores a new credential for username.
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.Required("Username")
	}
	if password == "" {
		return nil, models.Required("Password")
	}

	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return nil, models.ErrDuplicateUser
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The unique constraint still catches a concurrent registration.
	user, err := s.users.Create(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	return user, nil
}

// Authenticate verifies a username and password against the credential store.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			_ = s.compare(s.dummyHash, []byte(password))
			return nil, models.ErrUnknownUser
		}
		return nil, err
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidPassword
	}
	return user, nil
}

// Login authenticates and then replaces the client's session with one bound
// to the user.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request, username, password string) (*models.User, error) {
	user, err := s.Authenticate(r.Context(), username, password)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Establish(w, r, user.ID); err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", user.ID).Msg("User logged in")
	return user, nil
}

// Logout clears the session. It is idempotent.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) error {
	return s.sessions.Clear(w, r)
}

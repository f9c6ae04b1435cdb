package session

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

const (
	// CookieName is the name of the signed session cookie.
	CookieName = "quillblog-session"
	// CSRFField is the form field and session key holding the CSRF token.
	CSRFField = "csrf_token"
	// CSRFHeader may carry the token instead of the form field.
	CSRFHeader = "X-CSRF-Token"
	// userIDKey is the only key identifying the logged-in user.
	userIDKey = "user_id"
)

// Options tune the session cookie.
type Options struct {
	MaxAge int
	Secure bool
}

// Manager reads and writes the per-client session.
type Manager struct {
	store sessions.Store
}

// NewManager builds a Manager over a cookie store signed with secret.
func NewManager(secret []byte, opts Options) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Also bounds the signed timestamp, which otherwise expires after 30 days.
	store.MaxAge(opts.MaxAge)
	return &Manager{store: store}
}

// get never fails: a cookie that doesn't verify yields a fresh session.
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, CookieName)
	if err != nil {
		log.Debug().Err(err).Msg("Discarding unreadable session cookie")
	}
	return s
}

// UserID returns the user id bound to the request's session.
func (m *Manager) UserID(r *http.Request) (int64, bool) {
	id, ok := m.get(r).Values[userIDKey].(int64)
	return id, ok
}

// Establish drops everything held in the session and binds it to userID.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, userID int64) error {
	s := m.get(r)
	s.Values = map[interface{}]interface{}{userIDKey: userID}
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear empties the session. Safe to call without a session.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	s.Values = make(map[interface{}]interface{})
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// AddFlash queues a message for the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	s := m.get(r)
	s.AddFlash(msg)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// PageState pops queued flashes and returns the session's CSRF token, minting
// one when the session has none. The session is saved once if either changed,
// so call it before the response body.
func (m *Manager) PageState(w http.ResponseWriter, r *http.Request) ([]string, string) {
	s := m.get(r)
	raw := s.Flashes()
	dirty := len(raw) > 0

	token, _ := s.Values[CSRFField].(string)
	if token == "" {
		token = newToken()
		s.Values[CSRFField] = token
		dirty = true
	}

	if dirty {
		if err := s.Save(r, w); err != nil {
			log.Error().Err(err).Msg("Failed to save session while rendering")
		}
	}

	var msgs []string
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, token
}

// CSRFToken returns the token stored in the session, or "" if none was minted.
func (m *Manager) CSRFToken(r *http.Request) string {
	token, _ := m.get(r).Values[CSRFField].(string)
	return token
}

func newToken() string {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		log.Error().Msg("Failed to generate CSRF token")
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(key)
}

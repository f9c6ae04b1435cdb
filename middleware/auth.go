package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"quillblog/internal/auth"
	"quillblog/internal/session"
)

type Middleware struct {
	Guard    *auth.Guard
	Sessions *session.Manager
}

func NewMiddleware(guard *auth.Guard, sessions *session.Manager) *Middleware {
	return &Middleware{Guard: guard, Sessions: sessions}
}

// LoadUser resolves the session's user once and stores it in the request
// context for everything downstream.
func (m *Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.Guard.CurrentUser(r)
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// RequireAuth sends anonymous visitors to the login page, remembering where
// they were headed.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireAuthenticated(auth.UserFromContext(r.Context())); err != nil {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// VerifyCSRF rejects state-changing requests whose token does not match the
// one stored in the session by the last rendered page.
func (m *Middleware) VerifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		expected := m.Sessions.CSRFToken(r)
		received := r.FormValue(session.CSRFField)
		if received == "" {
			received = r.Header.Get(session.CSRFHeader)
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			log.Warn().
				Str("request_id", RequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bool("session_token", expected != "").
				Msg("CSRF check failed")
			http.Error(w, "Invalid or missing CSRF token. Reload the page and try again.", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

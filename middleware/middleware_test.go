package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillblog/internal/auth"
	"quillblog/internal/session"
	"quillblog/internal/testutil"
	"quillblog/models"
)

func TestLoggingMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(false)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(true)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestAuthMiddleware(t *testing.T) {
	factory := testutil.SetupTestRepositoryFactory(t)
	users := factory.NewUserRepository()
	sessions := session.NewManager([]byte("middleware-test-secret"), session.Options{MaxAge: 60})
	mw := NewMiddleware(auth.NewGuard(users, sessions), sessions)
	alice := testutil.CreateTestUser(t, users, "alice", "pw")

	var current *models.User
	protected := mw.LoadUser(mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		current = auth.UserFromContext(r.Context())
	}))

	t.Run("AnonymousIsRedirected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/create?draft=1", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?next=%2Fcreate%3Fdraft%3D1", rec.Header().Get("Location"))
		assert.Nil(t, current)
	})

	t.Run("SessionUserReachesHandler", func(t *testing.T) {
		login := httptest.NewRecorder()
		require.NoError(t, sessions.Establish(login, httptest.NewRequest(http.MethodPost, "/login", nil), alice.ID))

		req := httptest.NewRequest(http.MethodGet, "/create", nil)
		for _, c := range login.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, current)
		assert.Equal(t, alice.ID, current.ID)
	})
}

func TestVerifyCSRF(t *testing.T) {
	sessions := session.NewManager([]byte("middleware-test-secret"), session.Options{MaxAge: 60})
	mw := NewMiddleware(nil, sessions)

	reached := false
	h := mw.VerifyCSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	// Render once so the session holds a token.
	page := httptest.NewRecorder()
	_, token := sessions.PageState(page, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, token)
	cookies := page.Result().Cookies()

	post := func(form url.Values, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set(session.CSRFHeader, header)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		reached = false
		h.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name   string
		form   url.Values
		header string
		want   bool
	}{
		{"form token", url.Values{session.CSRFField: {token}}, "", true},
		{"header token", url.Values{}, token, true},
		{"missing", url.Values{"title": {"x"}}, "", false},
		{"wrong", url.Values{session.CSRFField: {token + "x"}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(tt.form, tt.header)
			assert.Equal(t, tt.want, reached)
			if !tt.want {
				assert.Equal(t, http.StatusForbidden, rec.Code)
			}
		})
	}

	t.Run("SafeMethodsPass", func(t *testing.T) {
		reached = false
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/create", nil))
		assert.True(t, reached)
	})

	t.Run("NoSessionToken", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(session.CSRFField+"="))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.False(t, reached)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

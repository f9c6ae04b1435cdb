package web_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillblog/internal/auth"
	"quillblog/internal/post"
	"quillblog/internal/session"
	"quillblog/internal/testutil"
	"quillblog/internal/web"
	"quillblog/middleware"
)

func setupServer(t *testing.T) *testutil.TestServer {
	factory := testutil.SetupTestRepositoryFactory(t)
	cfg := testutil.GetTestConfig()

	users := factory.NewUserRepository()
	sessions := session.NewManager(cfg.SessionSecret, session.Options{MaxAge: cfg.SessionMaxAge})
	authService := auth.NewAuthService(users, sessions, cfg.BcryptCost)
	postService := post.NewPostService(factory.NewPostRepository(), factory.NewFuturePostRepository())

	h, err := web.NewWebHandler(authService, postService, sessions, middleware.NewMiddleware(auth.NewGuard(users, sessions), sessions))
	require.NoError(t, err)

	return testutil.NewTestServer(t, h.SetupRoutes())
}

// loggedIn registers and logs in a fresh client as username.
func loggedIn(t *testing.T, ts *testutil.TestServer, username string) *testutil.TestServer {
	client := ts.NewClient()
	testutil.AssertRedirect(t, client.Register(username, "pw-"+username), "/login")
	testutil.AssertRedirect(t, client.Login(username, "pw-"+username), "/")
	return client
}

func TestRegisterAndLogin(t *testing.T) {
	ts := setupServer(t)

	t.Run("RegisterRedirectsToLoginWithFlash", func(t *testing.T) {
		testutil.AssertRedirect(t, ts.Register("alice", "secret123"), "/login")

		page := ts.GET("/login")
		assert.Equal(t, http.StatusOK, page.StatusCode)
		assert.Equal(t, []string{"Registration successful. Please log in."}, testutil.Flashes(t, testutil.Body(t, page)))

		// One-shot: gone on the next render.
		assert.Empty(t, testutil.Flashes(t, testutil.Body(t, ts.GET("/login"))))
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		resp := ts.Register("alice", "other")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{"User alice is already registered."}, testutil.Flashes(t, testutil.Body(t, resp)))
	})

	t.Run("MissingFields", func(t *testing.T) {
		resp := ts.Register("", "pw")
		assert.Equal(t, []string{"Username is required."}, testutil.Flashes(t, testutil.Body(t, resp)))

		resp = ts.Register("carol", "")
		assert.Equal(t, []string{"Password is required."}, testutil.Flashes(t, testutil.Body(t, resp)))
	})

	t.Run("BadCredentialsShareOneMessage", func(t *testing.T) {
		for _, creds := range [][2]string{{"alice", "wrong"}, {"nobody", "x"}} {
			resp := ts.Login(creds[0], creds[1])
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, []string{"Incorrect username or password."}, testutil.Flashes(t, testutil.Body(t, resp)))
		}
	})

	t.Run("LoginShowsUserInNav", func(t *testing.T) {
		testutil.AssertRedirect(t, ts.Login("alice", "secret123"), "/")
		assert.Contains(t, testutil.Body(t, ts.GET("/")), `<span class="user">alice</span>`)
	})

	t.Run("LogoutEndsSession", func(t *testing.T) {
		testutil.AssertRedirect(t, ts.GET("/logout"), "/")
		assert.NotContains(t, testutil.Body(t, ts.GET("/")), `<span class="user">`)
		testutil.AssertRedirect(t, ts.GET("/create"), "/login?next=%2Fcreate")

		// A second logout is harmless.
		testutil.AssertRedirect(t, ts.GET("/logout"), "/")
	})
}

func TestLoginFollowsNext(t *testing.T) {
	ts := setupServer(t)
	testutil.AssertRedirect(t, ts.Register("alice", "pw"), "/login")

	tests := []struct {
		next, want string
	}{
		{"/create", "/create"},
		{"/1/update?draft=1", "/1/update?draft=1"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"/\t/evil.example", "/"},
		{"/\r\n/evil.example", "/"},
		{"/%2F/evil.example", "/"},
	}
	for _, tt := range tests {
		t.Run(url.QueryEscape(tt.next), func(t *testing.T) {
			client := ts.NewClient()
			resp := client.POST("/login?next="+url.QueryEscape(tt.next), url.Values{"username": {"alice"}, "password": {"pw"}})
			testutil.AssertRedirect(t, resp, tt.want)
		})
	}
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	ts := setupServer(t)

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/create", "/login?next=%2Fcreate"},
		{http.MethodPost, "/create", "/login?next=%2Fcreate"},
		{http.MethodGet, "/auto", "/login?next=%2Fauto"},
		{http.MethodPost, "/auto", "/login?next=%2Fauto"},
		{http.MethodGet, "/1/update", "/login?next=%2F1%2Fupdate"},
		{http.MethodPost, "/1/delete", "/login?next=%2F1%2Fdelete"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var resp *http.Response
			if tt.method == http.MethodGet {
				resp = ts.GET(tt.path)
			} else {
				resp = ts.POST(tt.path, url.Values{"title": {"x"}})
			}
			testutil.AssertRedirect(t, resp, tt.want)
		})
	}

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(ts.GET("/healthz").Body).Decode(&health))
	assert.Equal(t, float64(0), health["posts"])
}

func TestPostLifecycle(t *testing.T) {
	ts := setupServer(t)
	alice := loggedIn(t, ts, "alice")
	bob := loggedIn(t, ts, "bob")

	t.Run("EmptyTitleRerendersForm", func(t *testing.T) {
		resp := alice.POST("/create", url.Values{"title": {"  "}, "body": {"kept"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := testutil.Body(t, resp)
		assert.Equal(t, []string{"Title is required."}, testutil.Flashes(t, body))
		assert.Contains(t, body, ">kept</textarea>")
	})

	t.Run("Create", func(t *testing.T) {
		testutil.AssertRedirect(t, alice.POST("/create", url.Values{"title": {"Hello"}, "body": {"First!"}}), "/")

		body := testutil.Body(t, alice.GET("/"))
		assert.Equal(t, []string{"Post published."}, testutil.Flashes(t, body))
		assert.Contains(t, body, `<a href="/1">Hello</a>`)
		assert.Contains(t, body, "by alice")
		assert.Contains(t, body, `href="/1/update"`)
	})

	t.Run("PublicPages", func(t *testing.T) {
		anon := ts.NewClient()
		assert.Contains(t, testutil.Body(t, anon.GET("/")), "Hello")

		resp := anon.GET("/1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := testutil.Body(t, resp)
		assert.Contains(t, body, "First!")
		assert.NotContains(t, body, `href="/1/update"`)

		assert.Equal(t, http.StatusNotFound, anon.GET("/999").StatusCode)
		assert.Equal(t, http.StatusNotFound, anon.GET("/no/such/page").StatusCode)
	})

	t.Run("NonOwnerIsForbidden", func(t *testing.T) {
		assert.NotContains(t, testutil.Body(t, bob.GET("/")), `href="/1/update"`)
		assert.Equal(t, http.StatusForbidden, bob.GET("/1/update").StatusCode)
		assert.Equal(t, http.StatusForbidden, bob.POST("/1/update", url.Values{"title": {"Mine now"}}).StatusCode)
		assert.Equal(t, http.StatusForbidden, bob.POST("/1/delete", nil).StatusCode)

		assert.Contains(t, testutil.Body(t, ts.NewClient().GET("/1")), "Hello")
	})

	t.Run("MissingPostIsNotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, alice.GET("/999/update").StatusCode)
		assert.Equal(t, http.StatusNotFound, alice.POST("/999/delete", nil).StatusCode)
	})

	t.Run("Update", func(t *testing.T) {
		page := testutil.Body(t, alice.GET("/1/update"))
		assert.Contains(t, page, `value="Hello"`)

		resp := alice.POST("/1/update", url.Values{"title": {""}, "body": {"x"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{"Title is required."}, testutil.Flashes(t, testutil.Body(t, resp)))

		testutil.AssertRedirect(t, alice.POST("/1/update", url.Values{"title": {"Hello again"}, "body": {"Edited"}}), "/1")
		body := testutil.Body(t, alice.GET("/1"))
		assert.Equal(t, []string{"Post updated."}, testutil.Flashes(t, body))
		assert.Contains(t, body, "Hello again")
		assert.Contains(t, body, "by alice")
	})

	t.Run("Delete", func(t *testing.T) {
		testutil.AssertRedirect(t, alice.POST("/1/delete", nil), "/")
		body := testutil.Body(t, alice.GET("/"))
		assert.Equal(t, []string{"Post deleted."}, testutil.Flashes(t, body))
		assert.Contains(t, body, "No posts yet.")
		assert.Equal(t, http.StatusNotFound, alice.GET("/1").StatusCode)
	})
}

func TestAutoPost(t *testing.T) {
	ts := setupServer(t)
	alice := loggedIn(t, ts, "alice")

	assert.Equal(t, http.StatusOK, alice.GET("/auto").StatusCode)

	// Viewing the confirmation page publishes nothing.
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(ts.GET("/healthz").Body).Decode(&health))
	assert.Equal(t, float64(0), health["posts"])

	testutil.AssertRedirect(t, alice.POST("/auto", nil), "/")
	body := testutil.Body(t, alice.GET("/"))

	flashes := testutil.Flashes(t, body)
	require.Len(t, flashes, 1)
	assert.Regexp(t, `^Published ".+"\.$`, flashes[0])
	assert.Contains(t, body, "by alice")
	assert.Contains(t, body, `href="/1/update"`)
}

func TestFormsRequireCSRFToken(t *testing.T) {
	ts := setupServer(t)
	alice := loggedIn(t, ts, "alice")

	t.Run("MissingToken", func(t *testing.T) {
		resp := alice.PostWithoutToken("/create", url.Values{"title": {"Forged"}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = ts.NewClient().PostWithoutToken("/register", url.Values{"username": {"mallory"}, "password": {"pw"}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("WrongToken", func(t *testing.T) {
		resp := alice.PostWithoutToken("/auto", url.Values{"csrf_token": {"not-the-token"}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("TokenFromAnotherSession", func(t *testing.T) {
		require.NotEmpty(t, alice.CSRFToken())
		bob := loggedIn(t, ts, "bob")
		resp := alice.PostWithoutToken("/create", url.Values{"title": {"Forged"}, "csrf_token": {bob.CSRFToken()}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("FormsCarryTheToken", func(t *testing.T) {
		token := alice.CSRFToken()
		page := testutil.Body(t, alice.GET("/create"))
		assert.Contains(t, page, `<input type="hidden" name="csrf_token" value="`+token+`">`)

		testutil.AssertRedirect(t, alice.PostWithoutToken("/create", url.Values{"title": {"Real"}, "csrf_token": {token}}), "/")
	})

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(ts.GET("/healthz").Body).Decode(&health))
	assert.Equal(t, float64(1), health["posts"])
}

func TestLoginRotatesCSRFToken(t *testing.T) {
	ts := setupServer(t)
	testutil.AssertRedirect(t, ts.Register("alice", "pw"), "/login")

	before := ts.CSRFToken()
	testutil.AssertRedirect(t, ts.Login("alice", "pw"), "/")
	assert.NotEqual(t, before, ts.CSRFToken())

	resp := ts.PostWithoutToken("/create", url.Values{"title": {"Stale"}, "csrf_token": {before}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

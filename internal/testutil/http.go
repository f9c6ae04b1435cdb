package testutil

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// TestServer is an httptest server plus a client that keeps cookies like a
// browser but does not follow redirects, so tests can assert on them.
type TestServer struct {
	*httptest.Server
	t      *testing.T
	client *http.Client
}

func NewTestServer(t *testing.T, handler http.Handler) *TestServer {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &TestServer{
		Server: server,
		t:      t,
		client: newClient(t),
	}
}

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewClient forgets every cookie, as if a second browser connected.
func (ts *TestServer) NewClient() *TestServer {
	return &TestServer{Server: ts.Server, t: ts.t, client: newClient(ts.t)}
}

func (ts *TestServer) GET(path string) *http.Response {
	resp, err := ts.client.Get(ts.URL + path)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// POST loads a page first to pick up the session's CSRF token, then submits
// form with it, the way a browser would.
func (ts *TestServer) POST(path string, form url.Values) *http.Response {
	withToken := url.Values{}
	for k, v := range form {
		withToken[k] = v
	}
	if withToken.Get("csrf_token") == "" {
		withToken.Set("csrf_token", ts.CSRFToken())
	}
	return ts.PostWithoutToken(path, withToken)
}

// PostWithoutToken submits form exactly as given.
func (ts *TestServer) PostWithoutToken(path string, form url.Values) *http.Response {
	resp, err := ts.client.PostForm(ts.URL+path, form)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// Register and Login drive the real forms.
func (ts *TestServer) Register(username, password string) *http.Response {
	return ts.POST("/register", url.Values{"username": {username}, "password": {password}})
}

func (ts *TestServer) Login(username, password string) *http.Response {
	return ts.POST("/login", url.Values{"username": {username}, "password": {password}})
}

// Body reads the whole response body.
func Body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// AssertRedirect checks for a 303 to location.
func AssertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}

// Flashes returns the text of every flash message on a rendered page.
func Flashes(t *testing.T, page string) []string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)

	var flashes []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "flash") {
			flashes = append(flashes, strings.TrimSpace(textContent(n)))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return flashes
}

// CSRFToken renders the index page and returns the token from its csrf-token
// meta tag. Rendering pops any queued flash messages.
func (ts *TestServer) CSRFToken() string {
	page := Body(ts.t, ts.GET("/"))
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(ts.t, err)

	var token string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" && attr(n, "name") == "csrf-token" {
			token = attr(n, "content")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.NotEmpty(ts.t, token, "page has no csrf-token meta tag")
	return token
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

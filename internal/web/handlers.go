package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"quillblog/internal/auth"
	"quillblog/internal/post"
	"quillblog/internal/session"
	"quillblog/middleware"
	"quillblog/models"
)

const msgBadCredentials = "Incorrect username or password."

type WebHandler struct {
	authService *auth.AuthService
	postService *post.PostService
	sessions    *session.Manager
	middleware  *middleware.Middleware
	templates   map[string]*template.Template
}

type PageData struct {
	Page      string
	User      *models.User
	Flashes   []string
	CSRFToken string

	Posts []*models.Post
	Post  *models.Post

	// Form values echoed back after a failed submit
	Username string
	Title    string
	Body     string
	Next     string

	Status  int
	Message string
}

func NewWebHandler(
	authService *auth.AuthService,
	postService *post.PostService,
	sessions *session.Manager,
	mw *middleware.Middleware,
) (*WebHandler, error) {
	templates, err := loadTemplates(templatesFS)
	if err != nil {
		return nil, err
	}

	return &WebHandler{
		authService: authService,
		postService: postService,
		sessions:    sessions,
		middleware:  mw,
		templates:   templates,
	}, nil
}

// Page Handlers
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "index.html", PageData{Page: "index", Posts: posts})
}

func (h *WebHandler) ShowPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Post not found.")
		return
	}

	p, err := h.postService.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "post.html", PageData{Page: "post", Post: p})
}

func (h *WebHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "register.html", PageData{Page: "register"})
		return
	}

	username := r.FormValue("username")
	_, err := h.authService.Register(r.Context(), username, r.FormValue("password"))
	if err != nil {
		var verr *models.ValidationError
		var msg string
		switch {
		case errors.As(err, &verr):
			msg = verr.Message
		case errors.Is(err, models.ErrDuplicateUser):
			msg = "User " + strings.TrimSpace(username) + " is already registered."
		default:
			h.handleError(w, r, err)
			return
		}
		h.render(w, r, http.StatusOK, "register.html", PageData{
			Page:     "register",
			Flashes:  []string{msg},
			Username: username,
		})
		return
	}

	h.flash(w, r, "Registration successful. Please log in.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *WebHandler) Login(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")

	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "login.html", PageData{Page: "login", Next: next})
		return
	}

	username := r.FormValue("username")
	if _, err := h.authService.Login(w, r, username, r.FormValue("password")); err != nil {
		if !models.IsCredentialError(err) {
			h.handleError(w, r, err)
			return
		}
		log.Info().Str("username", username).Msg("Failed login attempt")
		h.render(w, r, http.StatusOK, "login.html", PageData{
			Page:     "login",
			Flashes:  []string{msgBadCredentials},
			Username: username,
			Next:     next,
		})
		return
	}

	http.Redirect(w, r, safeRedirect(next), http.StatusSeeOther)
}

func (h *WebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(w, r); err != nil {
		log.Error().Err(err).Msg("Failed to clear session")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "create.html", PageData{Page: "create"})
		return
	}

	user := auth.UserFromContext(r.Context())
	title, body := r.FormValue("title"), r.FormValue("body")
	if _, err := h.postService.Create(r.Context(), title, body, user.ID); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			h.render(w, r, http.StatusOK, "create.html", PageData{
				Page:    "create",
				Flashes: []string{verr.Message},
				Title:   title,
				Body:    body,
			})
			return
		}
		h.handleError(w, r, err)
		return
	}

	h.flash(w, r, "Post published.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Post not found.")
		return
	}
	user := auth.UserFromContext(r.Context())

	if r.Method == http.MethodGet {
		p, err := h.postService.GetOwned(r.Context(), id, user)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		h.render(w, r, http.StatusOK, "update.html", PageData{Page: "update", Post: p, Title: p.Title, Body: p.Body})
		return
	}

	title, body := r.FormValue("title"), r.FormValue("body")
	p, err := h.postService.Update(r.Context(), id, title, body, user)
	if err != nil {
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			h.handleError(w, r, err)
			return
		}
		// Ownership already passed; reload for the page heading.
		current, gerr := h.postService.Get(r.Context(), id)
		if gerr != nil {
			h.handleError(w, r, gerr)
			return
		}
		h.render(w, r, http.StatusOK, "update.html", PageData{
			Page:    "update",
			Flashes: []string{verr.Message},
			Post:    current,
			Title:   title,
			Body:    body,
		})
		return
	}

	h.flash(w, r, "Post updated.")
	http.Redirect(w, r, "/"+strconv.FormatInt(p.ID, 10), http.StatusSeeOther)
}

func (h *WebHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Post not found.")
		return
	}

	if err := h.postService.Delete(r.Context(), id, auth.UserFromContext(r.Context())); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.flash(w, r, "Post deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) AutoPost(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "auto.html", PageData{Page: "auto"})
		return
	}

	p, err := h.postService.AutoPublish(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.flash(w, r, "Published \""+p.Title+"\".")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	count, err := h.postService.Count(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "posts": count})
}

func (h *WebHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "Page not found.")
}

// Helper methods

// handleError maps service errors onto responses. Anything unrecognised is a
// 500 and gets logged.
func (h *WebHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
	case errors.Is(err, models.ErrNotFound):
		h.renderError(w, r, http.StatusNotFound, "Post not found.")
	case errors.Is(err, models.ErrForbidden):
		h.renderError(w, r, http.StatusForbidden, "You can only change your own posts.")
	default:
		log.Error().Err(err).
			Str("request_id", middleware.RequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		h.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
	}
}

func (h *WebHandler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "error.html", PageData{Page: "error", Status: status, Message: msg})
}

// render executes a page into a buffer first so a template failure still
// produces a clean 500.
func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data PageData) {
	tmpl, ok := h.templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("Template not found")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data.User = auth.UserFromContext(r.Context())
	flashes, token := h.sessions.PageState(w, r)
	data.Flashes = append(flashes, data.Flashes...)
	data.CSRFToken = token

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Template execution error")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *WebHandler) flash(w http.ResponseWriter, r *http.Request, msg string) {
	if err := h.sessions.AddFlash(w, r, msg); err != nil {
		log.Error().Err(err).Msg("Failed to store flash message")
	}
}

func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// safeRedirect only follows local paths so a crafted next= cannot send the
// user to another site. Browsers drop tabs and newlines from URLs and treat a
// backslash like a slash, so any of those rejects the value outright.
func safeRedirect(next string) string {
	if next == "" || strings.ContainsRune(next, '\\') {
		return "/"
	}
	for _, c := range next {
		if unicode.IsControl(c) {
			return "/"
		}
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return next
}

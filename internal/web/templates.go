package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"quillblog/models"
)

//go:embed templates
var templatesFS embed.FS

var funcMap = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "Never"
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"formatTimeAgo": func(t time.Time) string {
		if t.IsZero() {
			return "Never"
		}
		duration := time.Since(t)
		switch {
		case duration < time.Minute:
			return fmt.Sprintf("%ds ago", int(duration.Seconds()))
		case duration < time.Hour:
			return fmt.Sprintf("%dm ago", int(duration.Minutes()))
		case duration < 24*time.Hour:
			return fmt.Sprintf("%dh ago", int(duration.Hours()))
		default:
			return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
		}
	},
	"isOwner": func(post *models.Post, user *models.User) bool {
		return post.IsOwnedBy(user)
	},
}

// loadTemplates parses every page together with the shared layout, keyed by
// the page's file name.
func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	pages, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob page templates: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(fsys, "templates/layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

package web

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *WebHandler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.middleware.LoadUser)
	r.Use(h.middleware.VerifyCSRF)

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	// Public pages
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/register", h.Register).Methods("GET", "POST")
	r.HandleFunc("/login", h.Login).Methods("GET", "POST")
	r.HandleFunc("/logout", h.Logout).Methods("GET")
	r.HandleFunc("/{id:[0-9]+}", h.ShowPost).Methods("GET")

	// Authenticated pages
	r.HandleFunc("/create", h.middleware.RequireAuth(h.CreatePost)).Methods("GET", "POST")
	r.HandleFunc("/auto", h.middleware.RequireAuth(h.AutoPost)).Methods("GET", "POST")
	r.HandleFunc("/{id:[0-9]+}/update", h.middleware.RequireAuth(h.UpdatePost)).Methods("GET", "POST")
	r.HandleFunc("/{id:[0-9]+}/delete", h.middleware.RequireAuth(h.DeletePost)).Methods("POST")

	// 404 handler
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)

	return r
}

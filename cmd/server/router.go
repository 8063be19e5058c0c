package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/popeskul/gathering-dispatch/internal/handler"
	"github.com/popeskul/gathering-dispatch/internal/middleware"
)

func setupRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	// Set before Mount so the API subrouter inherits them.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Mount("/", h.Routes())

	return r
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/metaco/metaco/internal/auth"
)

// Deps are the collaborators the local API serves.
type Deps struct {
	Sync   Syncer
	Router QueryRouter
	Events EventBus
	Auth   *auth.Service // nil leaves the API open
	Info   InfoFunc
}

// NewRouter creates and returns the main HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errMethodNotAllowed)
	})

	h := &Handlers{sync: d.Sync, router: d.Router, events: d.Events, info: d.Info}

	r.Group(func(r chi.Router) {
		if d.Auth != nil {
			r.Use(d.Auth.Middleware)
		}

		// Enabled flag
		r.Get("/api/state", h.getState)
		r.Post("/api/toggle", h.toggle)
		r.Post("/api/sync", h.syncNow)

		// Query routing
		r.Get("/api/route", h.route)
		r.Post("/api/forward", h.forward)
		r.Get("/api/silos", h.getSilos)

		// System
		r.Get("/api/info", h.getInfo)

		// SSE
		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}

// corsMiddleware adds permissive CORS headers so the extension popup can call
// the API from its chrome-extension:// origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

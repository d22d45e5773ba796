// Package router sets up all HTTP routes and middleware chains for the
// page builder. It organizes routes into the editor API, the generation
// backend and the public site, each with its own middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"smartbuilder/internal/handlers"
	"smartbuilder/internal/middleware"
)

// Deps carries the handler groups and middleware dependencies. Backend and
// Providers are nil when generation runs on a remote service; RateLimiter
// is nil when prompts are not rate-limited.
type Deps struct {
	Sessions    middleware.SessionStore
	EditorToken string
	RateLimiter *middleware.RateLimiter

	Editor    *handlers.Editor
	Backend   *handlers.Backend
	Providers *handlers.Providers
	Public    *handlers.Public
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	// Health check, no session or token.
	r.Get("/health", healthHandler)

	// Editor API: optional bearer token, then the session cookie. A rejected
	// request never creates a session.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireToken(d.EditorToken))
		r.Use(middleware.EnsureSession(d.Sessions))

		r.Get("/routes", d.Editor.Routes)

		if d.Providers != nil {
			r.Get("/providers", d.Providers.Status)
			r.Post("/providers", d.Providers.SetActive)
		}

		r.Route("/editor/{route}", func(r chi.Router) {
			r.Get("/", d.Editor.Open)
			r.Get("/versions", d.Editor.Versions)
			r.With(limit(d.RateLimiter)).Post("/prompt", d.Editor.Prompt)
			r.Post("/implement", d.Editor.Implement)
			r.Post("/select", d.Editor.Select)
			r.Post("/publish", d.Editor.Publish)
			r.Post("/mode", d.Editor.Mode)
		})
	})

	// Generation backend contract, served when generating in-process.
	if d.Backend != nil {
		r.With(limit(d.RateLimiter)).Post("/prompt", d.Backend.Prompt)
		r.Post("/publish", d.Backend.Publish)
		r.Get("/preview/{route}", d.Backend.Preview)
	}

	// Public site, served from the live versions.
	r.Get("/", d.Public.Homepage)
	r.Get("/site/{route}", d.Public.Page)

	return r
}

// limit returns the rate limiter middleware, or a pass-through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Package router aggregates the HTTP surface: wiki login, session
// maintenance, health and metrics.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	sessionctrl "github.com/Tiisu/SourceWiki-sub001/internal/http/controllers/session"
	wikictrl "github.com/Tiisu/SourceWiki-sub001/internal/http/controllers/wikiauth"
	httperrors "github.com/Tiisu/SourceWiki-sub001/internal/http/errors"
	"github.com/Tiisu/SourceWiki-sub001/internal/http/middlewares"
	"github.com/Tiisu/SourceWiki-sub001/internal/metrics"
	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	WikiAuth *wikictrl.Controller
	Session  *sessionctrl.Controller
	Repo     core.Repository

	// Registry for /metrics; nil falls back to the default registerer.
	Registry prometheus.Registerer
}

// New builds the chi mux with the standard middleware chain applied.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithLogging())
	r.Use(middlewares.WithRecover())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", healthHandler(d.Repo))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Registry))

	r.Route("/auth", func(r chi.Router) {
		r.Route("/wiki", func(r chi.Router) {
			r.Get("/login", d.WikiAuth.Login)
			r.Get("/link", d.WikiAuth.Link)
			r.Get("/callback", d.WikiAuth.Callback)
		})
		r.Route("/session", func(r chi.Router) {
			r.Post("/refresh", d.Session.Refresh)
			r.Post("/logout", d.Session.Logout)
		})
	})

	return r
}

// healthHandler reports liveness plus a bounded storage ping.
func healthHandler(repo core.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if repo != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := repo.Ping(ctx); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

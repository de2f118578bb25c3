package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/descanso-app/descanso/internal/identity"
	"github.com/descanso-app/descanso/internal/observability"
	"github.com/descanso-app/descanso/internal/platform/httpx"
	"github.com/descanso-app/descanso/internal/request"
	"github.com/descanso-app/descanso/jobs"
)

// RouterParams aggregates everything the HTTP router needs.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	IdentityMiddleware identity.Middleware
	IdentityHandler    *identity.Handler
	RequestHandler     *request.Handler
	JobHandler         *jobs.Handler
}

// NewRouter assembles the application router.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())

	timeout := 30 * time.Second
	if p.Config != nil && p.Config.AppRequestTimeout > 0 {
		timeout = p.Config.AppRequestTimeout
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Route("/auth", func(r chi.Router) {
				p.IdentityHandler.MountRoutes(r)
				r.With(p.IdentityMiddleware.RequireIdentity).Get("/me", p.IdentityHandler.Me)
			})
			r.Group(func(r chi.Router) {
				r.Use(p.IdentityMiddleware.RequireIdentity)
				p.RequestHandler.MountRoutes(r)
				if p.JobHandler != nil {
					r.Route("/jobs", func(r chi.Router) {
						r.Use(p.IdentityMiddleware.RequireManager)
						p.JobHandler.MountRoutes(r)
					})
				}
			})
		})

		// The event stream stays open past any request timeout.
		r.With(p.IdentityMiddleware.RequireIdentity).Get("/requests/stream", p.RequestHandler.HandleStream)
	})

	return r
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/esakrissa/modern-isoner/internal/auth"
	"github.com/esakrissa/modern-isoner/internal/conversations"
	"github.com/esakrissa/modern-isoner/internal/observability"
	"github.com/esakrissa/modern-isoner/internal/rbac"
	"github.com/esakrissa/modern-isoner/internal/shared"
	"github.com/esakrissa/modern-isoner/internal/users"
	"github.com/esakrissa/modern-isoner/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	AuthService          *auth.Service
	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	RBACHandler          *rbac.Handler
	ConversationsHandler *conversations.Handler
	JobHandler           *jobs.Handler
	RBACMiddleware       rbac.Middleware
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults. Everything
// except the health check, metrics and the auth endpoints sits behind the
// bearer-token middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.Middleware)

		r.Route("/me", params.RBACHandler.MountSelfRoutes)
		r.Route("/conversations", params.ConversationsHandler.MountRoutes)
		r.Route("/messages", params.ConversationsHandler.MountMessageRoutes)

		r.Route("/admin", func(r chi.Router) {
			params.RBACHandler.MountRoutes(r)
			// Row-level predicates for user rows live in the users
			// service guard, not in route middleware.
			r.Route("/users", params.UsersHandler.MountRoutes)
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.RBACMiddleware.Require(shared.PermViewAnalytics))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	return r
}

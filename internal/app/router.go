package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-cms/meridian/internal/approval"
	"github.com/meridian-cms/meridian/internal/audit"
	"github.com/meridian-cms/meridian/internal/export"
	"github.com/meridian-cms/meridian/internal/governance"
	"github.com/meridian-cms/meridian/internal/observability"
	"github.com/meridian-cms/meridian/internal/policy"
	"github.com/meridian-cms/meridian/internal/rbac"
	"github.com/meridian-cms/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	RBACHandler       *rbac.Handler
	PolicyHandler     *policy.Handler
	ApprovalHandler   *approval.Handler
	AuditHandler      *audit.Handler
	ExportHandler     *export.Handler
	JobHandler        *jobs.Handler
	GovernanceHandler *governance.Handler
	RBACMiddleware    rbac.Middleware
	Governance        *governance.Middleware
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/roles", func(rt chi.Router) {
			rt.Use(params.RBACMiddleware.Require("manage", "roles"))
			params.RBACHandler.MountRoleRoutes(rt)
		})
		api.Route("/permissions", func(rt chi.Router) {
			rt.Use(params.RBACMiddleware.Require("manage", "permissions"))
			params.RBACHandler.MountPermissionRoutes(rt)
		})
		api.Route("/users", func(rt chi.Router) {
			rt.Use(params.RBACMiddleware.Require("manage", "users"))
			params.RBACHandler.MountUserRoutes(rt)
		})
		// Policy management is itself a governed mutation and goes through
		// the full gate, not just the RBAC check.
		api.Route("/policies", func(rt chi.Router) {
			if params.Governance != nil {
				rt.Use(params.Governance.Enforce("manage", "policies"))
			}
			params.PolicyHandler.MountRoutes(rt)
		})
		api.Route("/approvals", func(rt chi.Router) {
			params.ApprovalHandler.MountRoutes(rt)
		})
		api.Route("/audit", func(rt chi.Router) {
			rt.Use(params.RBACMiddleware.Require("read", "audit"))
			params.AuditHandler.MountRoutes(rt)
		})
		api.Route("/exports", func(rt chi.Router) {
			params.ExportHandler.MountRoutes(rt)
		})
		if params.GovernanceHandler != nil {
			api.Route("/governance", func(rt chi.Router) {
				params.GovernanceHandler.MountRoutes(rt)
			})
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(rt chi.Router) {
				params.JobHandler.MountRoutes(rt)
			})
		}
	})

	return r
}

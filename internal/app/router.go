package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/tutorhub/tutorhub/internal/accounts"
	"github.com/tutorhub/tutorhub/internal/audit"
	audithttp "github.com/tutorhub/tutorhub/internal/audit/http"
	"github.com/tutorhub/tutorhub/internal/identity"
	"github.com/tutorhub/tutorhub/internal/observability"
	"github.com/tutorhub/tutorhub/internal/rbac"
	"github.com/tutorhub/tutorhub/internal/token"
	"github.com/tutorhub/tutorhub/jobs"
)

// Paths on the account surface that write their own audit entries, plus
// the audit read API which must not feed itself.
var auditExcludedPrefixes = []string{
	"/api/account/login",
	"/api/account/logout",
	"/api/account/switch-role",
	"/api/account/reset-role",
	"/api/account/impersonate-user",
	"/api/audit-logs",
}

// The account surface is reachable by every authenticated user; its
// admin-only parts carry their own gate.
var guardExcludedPrefixes = []string{
	"/api/account",
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Authenticator   token.Authenticator
	AccountsHandler *accounts.Handler
	IdentityHandler *identity.Handler
	RolesHandler    *rbac.Handler
	AuditHandler    *audithttp.Handler
	JobsHandler     *jobs.Handler
	Recorder        *audit.Recorder
	Enforcer        *rbac.Enforcer
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with TutorHub defaults.
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

	rbacMW := rbac.Middleware{
		Enforcer:         params.Enforcer,
		ExcludedPrefixes: guardExcludedPrefixes,
	}
	if params.Metrics != nil {
		rbacMW.Denials = params.Metrics
	}
	auditMW := audit.Middleware{
		Recorder:         params.Recorder,
		ExcludedPrefixes: auditExcludedPrefixes,
	}

	r.Route("/api/account", func(r chi.Router) {
		// Credential endpoints get a tighter per-IP budget than the
		// global limiter.
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			params.AccountsHandler.MountPublicRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.Authenticator.Middleware)
			r.Use(auditMW.Handler)
			r.Use(rbacMW.Guard)

			params.AccountsHandler.MountRoutes(r)
			params.IdentityHandler.MountRoutes(r)

			r.Route("/roles", func(r chi.Router) {
				r.Use(rbacMW.RequireAdmin)
				params.RolesHandler.MountRoutes(r)
			})
		})
	})

	r.Route("/api/audit-logs", func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)
		r.Use(rbacMW.RequireAdmin)
		params.AuditHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/api/jobs", func(r chi.Router) {
			r.Use(params.Authenticator.Middleware)
			r.Use(rbacMW.RequireAdmin)
			params.JobsHandler.MountRoutes(r)
		})
	}

	return r
}

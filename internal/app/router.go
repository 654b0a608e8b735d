package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
	"github.com/pcr-hr/hr-portal/internal/observability"
	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
	"github.com/pcr-hr/hr-portal/internal/proxy"
	"github.com/pcr-hr/hr-portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *auth.SessionManager
	CSRFManager       *auth.CSRFManager
	AuthHandler       *auth.Handler
	Proxy             *proxy.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The proxy streams upstream bodies, so it stays outside the timeout and
	// compression group.
	if params.Proxy != nil {
		r.Handle(proxy.Prefix+"/*", params.Proxy)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequestTimeout(params.Config))
		r.Use(chimw.Compress(5))

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.MasterDataHandler != nil {
			r.Route("/masterdata", func(r chi.Router) {
				r.Use(RequireSession)
				if params.CSRFManager != nil {
					r.Use(params.CSRFManager.Middleware)
				}
				params.MasterDataHandler.MountRoutes(r)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(RequireSession)
				params.JobHandler.MountRoutes(r)
			})
		}
		if params.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
		}
	})

	return r
}

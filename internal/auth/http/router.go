package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/internal/auth/store"
	"github.com/pulsehq/pulse/pkg/httpx"
	"github.com/pulsehq/pulse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Sessions *service.SessionService
	Recovery *service.RecoveryService
	Verifier *service.VerifierService

	RefreshTTL    time.Duration
	SecureCookies bool
}

func NewRouter(st store.Store, logger *slog.Logger, buildVersion string) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerRecovery()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	// Credential-bearing endpoints get the strict per-IP limit
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{
			Sessions:      r.Sessions,
			RefreshTTL:    r.RefreshTTL,
			SecureCookies: r.SecureCookies,
		},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{
			Sessions:      r.Sessions,
			RefreshTTL:    r.RefreshTTL,
			SecureCookies: r.SecureCookies,
		},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{Sessions: r.Sessions, SecureCookies: r.SecureCookies},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{Sessions: r.Sessions, SecureCookies: r.SecureCookies},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(&MeHandler{Verifier: r.Verifier},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerRecovery() {
	h := &RecoveryHandler{Recovery: r.Recovery, Verifier: r.Verifier}

	// The service keeps its own per-email throttle; the per-IP limit here
	// just blunts scripted scanning across many emails.
	r.Mux.Handle("POST /v1/recovery/start",
		httpx.Chain(http.HandlerFunc(h.Start),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/recovery/verify",
		httpx.Chain(http.HandlerFunc(h.Verify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/recovery/reset",
		httpx.Chain(http.HandlerFunc(h.Reset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/recovery/codes",
		httpx.Chain(http.HandlerFunc(h.RegenerateCodes),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}

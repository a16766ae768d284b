package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aussiebroadwan/medrec/internal/auth/metrics"
	"github.com/aussiebroadwan/medrec/internal/auth/service"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
	"github.com/aussiebroadwan/medrec/pkg/slogx"

	_ "github.com/aussiebroadwan/medrec/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// Verifier stays nil when no identity provider is configured; every
	// authenticated route then answers 503.
	Verifier             httpx.Verifier
	ProfileService       *service.ProfileService
	PasswordResetService *service.PasswordResetService

	// ReadinessChecks are probed by /readyz, keyed by component name.
	ReadinessChecks map[string]func(*http.Request) error

	Metrics        *metrics.Collector
	Gatherer       prometheus.Gatherer
	SwaggerEnabled bool
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:             http.NewServeMux(),
		buildVersion:    buildVersion,
		startTime:       time.Now(),
		logger:          logger,
		ReadinessChecks: map[string]func(*http.Request) error{},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

// ApplyRoutes registers every route and builds the global middleware chain.
// It must be called once, after the services are assigned.
func (r *Router) ApplyRoutes() {
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, r.Metrics.Middleware)
	}
	r.middlewares = append(r.middlewares, httpx.RateLimitByIP(httpx.GeneralLimit))

	r.registerAuth()
	r.registerProfile()
	r.registerSystem()

	if r.SwaggerEnabled {
		r.Mux.Handle("/swagger/", httpSwagger.Handler())
	}

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			MedRec Auth Gateway API
//	@version		0.1.0
//	@description	Server-side companion to the MedRec client. Verifies identity provider access tokens,
//	@description	rate limits password reset mail and serves the caller's medical profile.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/medrec
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Identity provider access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.handler == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeInternal, "routes not registered")
		return
	}
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// One limiter for every /auth/ route so they draw on the same per-IP budget.
	authLimit := httpx.RateLimitByIP(httpx.AuthLimit)

	r.Mux.Handle("POST /auth/verify",
		httpx.Chain(http.HandlerFunc(VerifyHandler),
			authLimit,
			httpx.AuthnMiddleware(r.Verifier),
		),
	)

	reset := &PasswordResetHandler{Service: r.PasswordResetService}
	r.Mux.Handle("POST /auth/password/reset", httpx.Chain(reset, authLimit))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Service: r.ProfileService}
	authn := []httpx.Middleware{
		httpx.AuthnMiddleware(r.Verifier),
		httpx.RateLimitByUser(httpx.GeneralLimit),
	}

	r.Mux.Handle("GET /v1/profile", httpx.Chain(http.HandlerFunc(h.HandleGet), authn...))
	r.Mux.Handle("PATCH /v1/profile", httpx.Chain(http.HandlerFunc(h.HandlePatch), authn...))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.ReadinessChecks))

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", metrics.Handler(r.Gatherer))
	}
}

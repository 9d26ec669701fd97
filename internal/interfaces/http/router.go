package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/internal/verdictdigest"
	"github.com/dreschagin/quickset-dashboard/pkg/config"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck проверяет зависимость для /readyz (Redis ping, Postgres ping)
type ReadinessCheck func(ctx context.Context) error

// Router настраивает маршруты приложения
type Router struct {
	mux               *http.ServeMux
	sessionAPIHandler *handler.SessionAPIHandler
	verdictAPIHandler *handler.VerdictAPIHandler
	websocketHandler  *handler.WebSocketHandler
	authAPIHandler    *handler.AuthAPIHandler
	digestHandler     *verdictdigest.Handler
	metrics           *metrics.Metrics
	gatherer          prometheus.Gatherer
	readiness         map[string]ReadinessCheck
	security          config.SecurityConfig
	rateLimit         config.RateLimitConfig
	logger            *logger.Logger
}

// NewRouter создает новый router
func NewRouter(
	sessionAPIHandler *handler.SessionAPIHandler,
	verdictAPIHandler *handler.VerdictAPIHandler,
	websocketHandler *handler.WebSocketHandler,
	authAPIHandler *handler.AuthAPIHandler,
	digestHandler *verdictdigest.Handler,
	metrics *metrics.Metrics,
	gatherer prometheus.Gatherer,
	readiness map[string]ReadinessCheck,
	security config.SecurityConfig,
	rateLimit config.RateLimitConfig,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		sessionAPIHandler: sessionAPIHandler,
		verdictAPIHandler: verdictAPIHandler,
		websocketHandler:  websocketHandler,
		authAPIHandler:    authAPIHandler,
		digestHandler:     digestHandler,
		metrics:           metrics,
		gatherer:          gatherer,
		readiness:         readiness,
		security:          security,
		rateLimit:         rateLimit,
		logger:            logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints are intentionally unauthenticated for probes.
	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("GET /readyz", rt.ready)
	rt.mux.Handle("GET /metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	auth := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, rt.metrics.AuthFailures, rt.logger)

	limiter := middleware.NewRateLimiter(rt.rateLimit.RPS, rt.rateLimit.Burst)
	limited := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RateLimit(limiter, rt.metrics.RateLimitDropped)(h))
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	// WebSocket
	rt.mux.Handle("GET /ws", protected(rt.websocketHandler.HandleConnection))

	// Auth
	rt.mux.HandleFunc("POST /api/v1/auth/login", rt.authAPIHandler.Login)
	rt.mux.HandleFunc("POST /api/v1/auth/logout", rt.authAPIHandler.Logout)
	rt.mux.HandleFunc("GET /api/v1/auth/status", rt.authAPIHandler.Status)

	// Sessions
	rt.mux.Handle("GET /api/v1/sessions/{id}", protected(rt.sessionAPIHandler.GetSession))
	rt.mux.Handle("POST /api/v1/sessions/{id}/answer", limited(rt.sessionAPIHandler.SubmitAnswer))
	rt.mux.Handle("POST /api/v1/sessions/{id}/snapshot", limited(rt.sessionAPIHandler.ExportSnapshot))
	rt.mux.Handle("GET /api/v1/sessions/{id}/snapshots", protected(rt.sessionAPIHandler.ListSnapshots))
	rt.mux.Handle("POST /api/v1/scenarios/run", limited(rt.sessionAPIHandler.RunScenario))
	rt.mux.Handle("GET /api/v1/verdicts", protected(rt.verdictAPIHandler.ListVerdicts))

	// Сводка по истории (DIGEST_ENABLED=false отключает)
	if rt.digestHandler != nil {
		rt.mux.Handle("GET /api/v1/verdicts/summary", protected(rt.digestHandler.Summary))
		rt.mux.Handle("POST /api/v1/verdicts/summary/run", limited(rt.digestHandler.RunNow))
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Compression(handler)
	handler = rt.metrics.Middleware(handler)
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}

// ready отвечает 503, если хотя бы одна зависимость недоступна
func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(rt.readiness))
	for name := range rt.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	status := http.StatusOK
	for _, name := range names {
		if err := rt.readiness[name](ctx); err != nil {
			rt.logger.Warn("Readiness check failed", "dependency", name, "error", err.Error())
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	ready := status == http.StatusOK
	middleware.WriteJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

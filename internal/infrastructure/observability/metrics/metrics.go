package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/quickset-dashboard/internal/application/poller"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// Metrics bundles prometheus collectors used by the dashboard.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDurationSec  *prometheus.HistogramVec
	AuthFailures        prometheus.Counter
	RateLimitDropped    prometheus.Counter
	PollerFetches       *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	WebSocketClients    prometheus.Gauge
	VerdictsFinalized   *prometheus.CounterVec
	MetricStatuses      *prometheus.CounterVec
}

var (
	_ poller.Observer              = (*Metrics)(nil)
	_ port.VerdictMetricsPublisher = (*Metrics)(nil)
)

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickset_http_requests_total",
			Help: "Total number of dashboard HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quickset_http_request_duration_seconds",
			Help:    "Dashboard request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickset_auth_failures_total",
			Help: "Total number of dashboard auth failures.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickset_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
		PollerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickset_poller_fetches_total",
			Help: "Session fetches completed by pollers, by result.",
		}, []string{"result"}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quickset_poller_active_subscriptions",
			Help: "Number of session subscriptions currently polling.",
		}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quickset_websocket_clients",
			Help: "Number of connected WebSocket clients.",
		}),
		VerdictsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickset_verdicts_finalized_total",
			Help: "Finalized session verdicts, by scenario and conflict flag.",
		}, []string{"scenario", "conflict"}),
		MetricStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickset_verdict_metric_status_total",
			Help: "Finalized metric statuses, by metric and status.",
		}, []string{"metric", "status"}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
		m.PollerFetches,
		m.ActiveSubscriptions,
		m.WebSocketClients,
		m.VerdictsFinalized,
		m.MetricStatuses,
	)

	return m
}

// FetchCompleted implements poller.Observer.
func (m *Metrics) FetchCompleted(result poller.FetchResult) {
	m.PollerFetches.WithLabelValues(string(result)).Inc()
}

// SubscriptionsChanged implements poller.Observer.
func (m *Metrics) SubscriptionsChanged(delta int) {
	m.ActiveSubscriptions.Add(float64(delta))
}

// PublishVerdict counts a finalized verdict. Never fails.
func (m *Metrics) PublishVerdict(_ context.Context, scenario string, verdict entity.Verdict) error {
	m.VerdictsFinalized.WithLabelValues(scenario, strconv.FormatBool(verdict.Conflict)).Inc()
	m.MetricStatuses.WithLabelValues("brand", verdict.Brand.Normalize().String()).Inc()
	m.MetricStatuses.WithLabelValues("volume", verdict.Volume.Normalize().String()).Inc()
	m.MetricStatuses.WithLabelValues("osd", verdict.OSD.Normalize().String()).Inc()
	return nil
}

// Flush is a no-op: collectors are scraped.
func (m *Metrics) Flush(context.Context) error {
	return nil
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute схлопывает id сессий, чтобы не плодить label'ы
func normalizeRoute(path string) string {
	switch {
	case path == "/ws", path == "/healthz", path == "/readyz", path == "/metrics":
		return path
	case path == "/api/v1/scenarios/run", path == "/api/v1/verdicts":
		return path
	case strings.HasPrefix(path, "/api/v1/sessions/"):
		rest := strings.TrimPrefix(path, "/api/v1/sessions/")
		if _, action, ok := strings.Cut(rest, "/"); ok {
			return "/api/v1/sessions/{id}/" + action
		}
		return "/api/v1/sessions/{id}"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

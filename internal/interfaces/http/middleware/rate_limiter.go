package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10_000
	clientIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter применяет глобальный лимит и лимит на клиента.
type RateLimiter struct {
	global *rate.Limiter
	perIP  map[string]*clientLimiter
	mu     sync.Mutex

	rps   rate.Limit
	burst int
	now   func() time.Time
}

// NewRateLimiter creates a limiter: rps requests per second per client, burst maximum burst size.
// Глобальный лимит в 10 раз выше клиентского.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		global: rate.NewLimiter(rate.Limit(rps*10), burst*10),
		perIP:  make(map[string]*clientLimiter),
		rps:    rate.Limit(rps),
		burst:  burst,
		now:    time.Now,
	}
}

// RateLimit middleware limits requests per client IP. dropped может быть nil.
func RateLimit(limiter *RateLimiter, dropped prometheus.Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := unauthenticatedPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(ClientIP(r)) {
				if dropped != nil {
					dropped.Inc()
				}
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allow сообщает, можно ли обработать запрос клиента ip
func (l *RateLimiter) Allow(ip string) bool {
	if !l.global.Allow() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	item, ok := l.perIP[ip]
	if !ok {
		item = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.perIP[ip] = item
	}
	item.lastSeen = now

	if len(l.perIP) > maxTrackedClients {
		l.cleanupLocked(now.Add(-clientIdleTTL))
	}

	return item.limiter.AllowN(now, 1)
}

func (l *RateLimiter) cleanupLocked(threshold time.Time) {
	for ip, entry := range l.perIP {
		if entry.lastSeen.Before(threshold) {
			delete(l.perIP, ip)
		}
	}
}

// ClientIP берёт первый адрес из X-Forwarded-For, иначе host из RemoteAddr
func ClientIP(r *http.Request) string {
	if forwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		if first := strings.TrimSpace(parts[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

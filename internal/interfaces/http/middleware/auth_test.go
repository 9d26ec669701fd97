package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

func TestAuth(t *testing.T) {
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "auth_failures_total"})
	handler := Auth(AuthConfig{Enabled: true, BearerToken: "secret-token"}, failures, logger.New("error"))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name       string
		path       string
		header     string
		cookie     string
		wantStatus int
	}{
		{name: "valid bearer", path: "/api/v1/sessions/QS_1", header: "Bearer secret-token", wantStatus: http.StatusOK},
		{name: "lowercase scheme", path: "/api/v1/sessions/QS_1", header: "bearer secret-token", wantStatus: http.StatusOK},
		{name: "cookie", path: "/api/v1/sessions/QS_1", cookie: "secret-token", wantStatus: http.StatusOK},
		{name: "query token", path: "/ws?token=secret-token", wantStatus: http.StatusOK},
		{name: "missing token", path: "/api/v1/sessions/QS_1", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", path: "/api/v1/sessions/QS_1", header: "Bearer wrong", wantStatus: http.StatusUnauthorized},
		{name: "health without token", path: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics without token", path: "/metrics", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}

	if got := testutil.ToFloat64(failures); got != 2 {
		t.Fatalf("auth failures = %v, want 2", got)
	}
}

func TestValidateRequestAuthRequiresConfiguredToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/verdicts", nil)
	req.Header.Set("Authorization", "Bearer ")

	if err := ValidateRequestAuth(req, AuthConfig{Enabled: true}); err != ErrUnauthorized {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if err := ValidateRequestAuth(req, AuthConfig{Enabled: false}); err != nil {
		t.Fatalf("disabled auth returned %v", err)
	}
}

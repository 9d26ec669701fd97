package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// authCookieTTL — время жизни cookie после входа в дашборд
const authCookieTTL = 12 * time.Hour

// AuthAPIHandler выдаёт и снимает cookie доступа к дашборду
type AuthAPIHandler struct {
	authConfig middleware.AuthConfig
	failures   prometheus.Counter
	logger     *logger.Logger
}

type authLoginRequest struct {
	Token string `json:"token"`
}

type authStatusResponse struct {
	AuthEnabled   bool `json:"auth_enabled"`
	Authenticated bool `json:"authenticated"`
	CookiePresent bool `json:"cookie_present"`
}

// NewAuthAPIHandler создает handler; failures может быть nil
func NewAuthAPIHandler(authConfig middleware.AuthConfig, failures prometheus.Counter, log *logger.Logger) *AuthAPIHandler {
	return &AuthAPIHandler{
		authConfig: authConfig,
		failures:   failures,
		logger:     log,
	}
}

// Login godoc
// POST /api/v1/auth/login {"token": "..."}
func (h *AuthAPIHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.authConfig.Enabled {
		middleware.WriteJSON(w, http.StatusOK, authStatusResponse{AuthEnabled: false, Authenticated: true})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req authLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := strings.TrimSpace(req.Token)
	if !middleware.TokenMatches(h.authConfig, token) {
		if h.failures != nil {
			h.failures.Inc()
		}
		h.logger.Warn("Dashboard login rejected", "remote_addr", middleware.ClientIP(r), "request_id", middleware.RequestIDFrom(r))
		middleware.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	middleware.WriteAuthCookie(w, token, r.TLS != nil, int(authCookieTTL.Seconds()))
	middleware.WriteJSON(w, http.StatusOK, authStatusResponse{
		AuthEnabled:   true,
		Authenticated: true,
		CookiePresent: true,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
func (h *AuthAPIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearAuthCookie(w, r.TLS != nil)
	middleware.WriteJSON(w, http.StatusOK, authStatusResponse{AuthEnabled: h.authConfig.Enabled})
}

// Status godoc
// GET /api/v1/auth/status
func (h *AuthAPIHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, authStatusResponse{
		AuthEnabled:   h.authConfig.Enabled,
		Authenticated: middleware.ValidateRequestAuth(r, h.authConfig) == nil,
		CookiePresent: hasAuthCookie(r),
	})
}

func hasAuthCookie(r *http.Request) bool {
	c, err := r.Cookie(middleware.AuthCookieName)
	if err != nil {
		return false
	}
	return strings.TrimSpace(c.Value) != ""
}

package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsInfra "github.com/dreschagin/quickset-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

const wildcardOrigin = "*"

// WebSocketHandler поднимает live-подписку на сессию: GET /ws[?session_id=...]
type WebSocketHandler struct {
	hub            *wsInfra.Hub
	logger         *logger.Logger
	allowedOrigins map[string]struct{}
	authConfig     middleware.AuthConfig
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler создает handler. Origin'ы сравниваются в виде scheme://host.
func NewWebSocketHandler(
	hub *wsInfra.Hub,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if strings.TrimSpace(origin) == wildcardOrigin {
			origins[wildcardOrigin] = struct{}{}
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			origins[normalized] = struct{}{}
		}
	}

	h := &WebSocketHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: origins,
		authConfig:     authConfig,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if _, ok := h.allowedOrigins[wildcardOrigin]; ok {
		return true
	}

	origin, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}
	_, allowed := h.allowedOrigins[origin]
	return allowed
}

// normalizeOrigin приводит "http://host:8080/" к "http://host:8080"
func normalizeOrigin(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host), true
}

// HandleConnection godoc
// GET /ws
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.authConfig); err != nil {
		h.logger.Warn("WebSocket unauthorized", "remote_addr", middleware.ClientIP(r))
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("WebSocket upgrade failed", "origin", r.Header.Get("Origin"), "error", err.Error())
		return
	}

	query := r.URL.Query()
	sessionID := strings.TrimSpace(query.Get("session_id"))
	credential := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if credential == "" {
		credential = strings.TrimSpace(query.Get("api_key"))
	}

	client := wsInfra.NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)
	client.Start(sessionID, credential)

	h.logger.Debug("WebSocket client connected",
		"remote_addr", middleware.ClientIP(r),
		"session_id", sessionID,
	)
}

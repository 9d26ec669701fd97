package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/application/usecase"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/backend"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// APIKeyHeader — credential QuickSet backend'а от клиента
const APIKeyHeader = "X-QuickSet-Api-Key"

const maxRequestBodyBytes = 64 << 10

type sessionReader interface {
	Execute(ctx context.Context, sessionID, credential string) (*dto.SessionVerdictDTO, error)
}

type answerSubmitter interface {
	Execute(ctx context.Context, sessionID, credential, answer string) (*dto.SessionVerdictDTO, error)
}

type snapshotExporter interface {
	Execute(ctx context.Context, sessionID, credential string) (*dto.SnapshotExportDTO, error)
}

type snapshotLister interface {
	Execute(ctx context.Context, sessionID string, limit int, cursor string) (*dto.SnapshotPageDTO, error)
}

type scenarioRunner interface {
	Execute(ctx context.Context, credential string, cmd usecase.RunScenarioCommand) (*port.RunScenarioResult, error)
}

// SessionAPIHandler обслуживает REST API сессий QuickSet
type SessionAPIHandler struct {
	getSession     sessionReader
	submitAnswer   answerSubmitter
	exportSnapshot snapshotExporter
	listSnapshots  snapshotLister
	runScenario    scenarioRunner

	defaultCredential string
	logger            *logger.Logger
}

// NewSessionAPIHandler создает новый handler
func NewSessionAPIHandler(
	getSession *usecase.GetSessionVerdictUseCase,
	submitAnswer *usecase.SubmitAnswerUseCase,
	exportSnapshot *usecase.ExportSnapshotUseCase,
	listSnapshots *usecase.ListSnapshotsUseCase,
	runScenario *usecase.RunScenarioUseCase,
	defaultCredential string,
	logger *logger.Logger,
) *SessionAPIHandler {
	return &SessionAPIHandler{
		getSession:        getSession,
		submitAnswer:      submitAnswer,
		exportSnapshot:    exportSnapshot,
		listSnapshots:     listSnapshots,
		runScenario:       runScenario,
		defaultCredential: defaultCredential,
		logger:            logger,
	}
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type runScenarioRequest struct {
	TesterID        string `json:"tester_id"`
	STBIP           string `json:"stb_ip"`
	ScenarioName    string `json:"scenario_name"`
	ExpectedChannel *int   `json:"expected_channel,omitempty"`
}

// GetSession возвращает snapshot сессии и вердикт
func (h *SessionAPIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.getSession.Execute(r.Context(), r.PathValue("id"), h.credential(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// SubmitAnswer отправляет ответ тестировщика
func (h *SessionAPIHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.submitAnswer.Execute(r.Context(), r.PathValue("id"), h.credential(r), req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// ExportSnapshot архивирует текущий snapshot (409, пока анализ не готов)
func (h *SessionAPIHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := h.exportSnapshot.Execute(r.Context(), r.PathValue("id"), h.credential(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// ListSnapshots возвращает страницу архива сессии
func (h *SessionAPIHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	page, err := h.listSnapshots.Execute(r.Context(), r.PathValue("id"), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

// RunScenario запускает сценарий на приставке
func (h *SessionAPIHandler) RunScenario(w http.ResponseWriter, r *http.Request) {
	var req runScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.runScenario.Execute(r.Context(), h.credential(r), usecase.RunScenarioCommand{
		TesterID:        req.TesterID,
		STBIP:           req.STBIP,
		ScenarioName:    req.ScenarioName,
		ExpectedChannel: req.ExpectedChannel,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, result)
}

func (h *SessionAPIHandler) credential(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	return h.defaultCredential
}

func (h *SessionAPIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Session API request failed", err,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFrom(r),
		)
	}
	middleware.WriteError(w, status, err.Error())
}

// statusFromError сопоставляет ошибки usecase'ов и backend'а с HTTP статусами
func statusFromError(err error) int {
	var httpErr *backend.HTTPError

	switch {
	case errors.Is(err, usecase.ErrInvalidAnswer),
		errors.Is(err, usecase.ErrInvalidSessionID),
		errors.Is(err, usecase.ErrInvalidScenarioRequest),
		errors.Is(err, port.ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnauthorized), errors.Is(err, backend.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrArchiveDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &httpErr):
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return httpErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return false
		}
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return limit, true
}

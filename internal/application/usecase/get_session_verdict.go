package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,128}$`)

// SessionFinalizer фиксирует терминальную сессию (реализуется FinalizeSessionUseCase)
type SessionFinalizer interface {
	Execute(ctx context.Context, envelope *entity.SessionEnvelope) (*entity.VerdictRecord, error)
}

// GetSessionVerdictUseCase возвращает snapshot сессии и вердикт по нему.
// Терминальные snapshot'ы берутся из кеша: после завершения сессия не меняется.
// Запись кеша привязана к api key, с которым backend отдал сессию.
type GetSessionVerdictUseCase struct {
	gateway    port.SessionGateway
	reconciler *service.VerdictReconciler
	cache      port.Cache
	finalizer  SessionFinalizer
	logger     *logger.Logger
}

// NewGetSessionVerdictUseCase создает use case; cache и finalizer могут быть nil
func NewGetSessionVerdictUseCase(
	gateway port.SessionGateway,
	reconciler *service.VerdictReconciler,
	cache port.Cache,
	finalizer SessionFinalizer,
	logger *logger.Logger,
) *GetSessionVerdictUseCase {
	return &GetSessionVerdictUseCase{
		gateway:    gateway,
		reconciler: reconciler,
		cache:      cache,
		finalizer:  finalizer,
		logger:     logger,
	}
}

// Execute выполняет получение вердикта
func (uc *GetSessionVerdictUseCase) Execute(ctx context.Context, sessionID, credential string) (*dto.SessionVerdictDTO, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	if envelope, ok := uc.cached(ctx, sessionID, credential); ok {
		uc.logger.Debug("Cache hit for terminal session", "session_id", sessionID)
		result := buildSessionVerdict(uc.reconciler, envelope)
		result.Cached = true
		return result, nil
	}

	envelope, err := uc.gateway.FetchSession(ctx, sessionID, credential)
	if err != nil {
		return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}

	if envelope.IsComplete() {
		uc.store(ctx, envelope, credential)
		finalize(ctx, uc.finalizer, envelope, uc.logger)
	}

	return buildSessionVerdict(uc.reconciler, envelope), nil
}

func (uc *GetSessionVerdictUseCase) cached(ctx context.Context, sessionID, credential string) (*entity.SessionEnvelope, bool) {
	if uc.cache == nil {
		return nil, false
	}

	var envelope entity.SessionEnvelope
	if err := uc.cache.Get(ctx, port.SessionCacheKey(sessionID, credential), &envelope); err != nil {
		if !errors.Is(err, port.ErrCacheMiss) {
			uc.logger.Warn("Session cache lookup failed", "session_id", sessionID, "error", err.Error())
		}
		return nil, false
	}

	if !envelope.IsComplete() {
		return nil, false
	}
	return &envelope, true
}

func (uc *GetSessionVerdictUseCase) store(ctx context.Context, envelope *entity.SessionEnvelope, credential string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Set(ctx, port.SessionCacheKey(envelope.Session.SessionID, credential), envelope); err != nil {
		uc.logger.Warn("Failed to cache terminal session",
			"session_id", envelope.Session.SessionID,
			"error", err.Error())
	}
}

func buildSessionVerdict(reconciler *service.VerdictReconciler, envelope *entity.SessionEnvelope) *dto.SessionVerdictDTO {
	verdict := reconciler.Reconcile(&envelope.Session, envelope.AnalysisEvidence())
	return &dto.SessionVerdictDTO{
		Session:  envelope,
		Verdict:  dto.NewVerdictDTO(verdict),
		Terminal: envelope.IsComplete(),
	}
}

// finalize запускает фиксацию вердикта; ошибки не влияют на ответ клиенту
func finalize(ctx context.Context, finalizer SessionFinalizer, envelope *entity.SessionEnvelope, log *logger.Logger) {
	if finalizer == nil {
		return
	}
	if _, err := finalizer.Execute(ctx, envelope); err != nil {
		log.Error("Failed to finalize session verdict", err, "session_id", envelope.Session.SessionID)
	}
}

func normalizeSessionID(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if !sessionIDRegex.MatchString(sessionID) {
		return "", ErrInvalidSessionID
	}
	return sessionID, nil
}

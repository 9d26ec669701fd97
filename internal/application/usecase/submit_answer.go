package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// SubmitAnswerUseCase передаёт ответ тестировщика в backend.
// Возвращённый snapshot вызывающий подставляет в poller через ReplaceSnapshot.
type SubmitAnswerUseCase struct {
	gateway    port.SessionGateway
	reconciler *service.VerdictReconciler
	finalizer  SessionFinalizer
	logger     *logger.Logger
}

func NewSubmitAnswerUseCase(
	gateway port.SessionGateway,
	reconciler *service.VerdictReconciler,
	finalizer SessionFinalizer,
	logger *logger.Logger,
) *SubmitAnswerUseCase {
	return &SubmitAnswerUseCase{
		gateway:    gateway,
		reconciler: reconciler,
		finalizer:  finalizer,
		logger:     logger,
	}
}

// Execute выполняет отправку ответа
func (uc *SubmitAnswerUseCase) Execute(ctx context.Context, sessionID, credential, answer string) (*dto.SessionVerdictDTO, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrInvalidAnswer
	}

	envelope, err := uc.gateway.SubmitAnswer(ctx, sessionID, credential, answer)
	if err != nil {
		return nil, fmt.Errorf("submit answer for %s: %w", sessionID, err)
	}

	uc.logger.Info("Tester answer submitted",
		"session_id", sessionID,
		"overall_status", envelope.Session.OverallStatus.String())

	if envelope.IsComplete() {
		finalize(ctx, uc.finalizer, envelope, uc.logger)
	}

	return buildSessionVerdict(uc.reconciler, envelope), nil
}

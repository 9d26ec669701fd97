package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// FinalizeSessionDeps — приёмники финального вердикта. Всё, кроме Repository, опционально.
type FinalizeSessionDeps struct {
	Repository repository.VerdictRepository
	Archiver   *SnapshotArchiver
	Events     port.EventPublisher
	Metrics    port.VerdictMetricsPublisher
	Notifier   port.NotificationService
}

// FinalizeSessionUseCase фиксирует вердикт терминальной сессии ровно один раз:
// история в Postgres, архив snapshot'а, событие в NATS и метрики.
type FinalizeSessionUseCase struct {
	deps       FinalizeSessionDeps
	reconciler *service.VerdictReconciler
	logger     *logger.Logger
	now        func() time.Time

	mu        sync.Mutex
	finalized map[string]struct{}
}

func NewFinalizeSessionUseCase(
	deps FinalizeSessionDeps,
	reconciler *service.VerdictReconciler,
	log *logger.Logger,
) *FinalizeSessionUseCase {
	return &FinalizeSessionUseCase{
		deps:       deps,
		reconciler: reconciler,
		logger:     log,
		now:        time.Now,
		finalized:  make(map[string]struct{}),
	}
}

// Execute фиксирует вердикт. Для уже зафиксированной сессии возвращает (nil, nil).
func (uc *FinalizeSessionUseCase) Execute(ctx context.Context, envelope *entity.SessionEnvelope) (*entity.VerdictRecord, error) {
	if !envelope.IsComplete() {
		return nil, ErrNotReady
	}

	sessionID := envelope.Session.SessionID
	if !uc.reserve(sessionID) {
		return nil, nil
	}

	existing, err := uc.deps.Repository.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil && existing != nil:
		uc.logger.Debug("Session verdict already recorded", "session_id", sessionID)
		return nil, nil
	case err != nil && !errors.Is(err, repository.ErrVerdictNotFound):
		// Save делает upsert по session_id, поэтому фиксация продолжается
		uc.logger.Warn("Failed to check recorded verdict", "session_id", sessionID, "error", err.Error())
	}

	verdict := uc.reconciler.Reconcile(&envelope.Session, envelope.AnalysisEvidence())
	record := &entity.VerdictRecord{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		ScenarioName:  envelope.Session.ScenarioName,
		OverallStatus: envelope.Session.OverallStatus,
		Verdict:       verdict,
		RecordedAt:    uc.now().UTC(),
	}
	if envelope.Session.FinishedAt != nil {
		record.FinishedAt = *envelope.Session.FinishedAt
	}

	if uc.deps.Archiver.Enabled() {
		if exported, err := uc.deps.Archiver.Archive(ctx, envelope); err == nil {
			record.SnapshotKey = exported.Key
		}
	}

	if err := uc.deps.Repository.Save(ctx, record); err != nil {
		uc.release(sessionID)
		return nil, fmt.Errorf("failed to save verdict for %s: %w", sessionID, err)
	}

	uc.publish(ctx, record)

	if uc.deps.Notifier != nil {
		uc.deps.Notifier.BroadcastVerdict(dto.FromVerdictRecord(record))
	}

	uc.logger.Info("Session verdict finalized",
		"session_id", sessionID,
		"overall_status", record.OverallStatus.String(),
		"brand", verdict.Brand.String(),
		"volume", verdict.Volume.String(),
		"osd", verdict.OSD.String(),
		"conflict", verdict.Conflict,
	)

	return record, nil
}

func (uc *FinalizeSessionUseCase) publish(ctx context.Context, record *entity.VerdictRecord) {
	if uc.deps.Events != nil {
		event := port.VerdictFinalizedEvent{
			EventID:       uuid.NewString(),
			SessionID:     record.SessionID,
			ScenarioName:  record.ScenarioName,
			OverallStatus: record.OverallStatus.String(),
			BrandStatus:   record.Verdict.Brand.String(),
			VolumeStatus:  record.Verdict.Volume.String(),
			OSDStatus:     record.Verdict.OSD.String(),
			BrandMismatch: record.Verdict.BrandMismatch,
			Conflict:      record.Verdict.Conflict,
			SnapshotKey:   record.SnapshotKey,
			FinalizedAt:   record.RecordedAt,
		}
		if err := uc.deps.Events.PublishVerdictFinalized(ctx, event); err != nil {
			uc.logger.Warn("Failed to publish verdict event", "session_id", record.SessionID, "error", err.Error())
		}
	}

	if uc.deps.Metrics != nil {
		if err := uc.deps.Metrics.PublishVerdict(ctx, record.ScenarioName, record.Verdict); err != nil {
			uc.logger.Warn("Failed to publish verdict metrics", "session_id", record.SessionID, "error", err.Error())
		}
	}
}

func (uc *FinalizeSessionUseCase) reserve(sessionID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, ok := uc.finalized[sessionID]; ok {
		return false
	}
	uc.finalized[sessionID] = struct{}{}
	return true
}

func (uc *FinalizeSessionUseCase) release(sessionID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.finalized, sessionID)
}

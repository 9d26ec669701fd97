package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

type SnapshotArchiverConfig struct {
	KeyPrefix   string
	MetadataTTL time.Duration
}

// SnapshotArchiver сохраняет snapshot сессии в S3 и индексирует его в DynamoDB.
// Индекс опционален: без него архив всё равно пишется.
type SnapshotArchiver struct {
	storage  port.SnapshotStorage
	metadata port.SnapshotMetadataRepository
	config   SnapshotArchiverConfig
	logger   *logger.Logger
	now      func() time.Time
}

func NewSnapshotArchiver(
	storage port.SnapshotStorage,
	metadata port.SnapshotMetadataRepository,
	config SnapshotArchiverConfig,
	log *logger.Logger,
) *SnapshotArchiver {
	return &SnapshotArchiver{
		storage:  storage,
		metadata: metadata,
		config:   config,
		logger:   log,
		now:      time.Now,
	}
}

// Enabled сообщает, настроено ли хранилище
func (a *SnapshotArchiver) Enabled() bool {
	return a != nil && a.storage != nil
}

// Archive загружает snapshot и возвращает ключ объекта
func (a *SnapshotArchiver) Archive(ctx context.Context, envelope *entity.SessionEnvelope) (*dto.SnapshotExportDTO, error) {
	if !a.Enabled() {
		return nil, ErrArchiveDisabled
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	archivedAt := a.now().UTC()
	sessionID := envelope.Session.SessionID
	key := a.buildKey(sessionID, archivedAt)

	url, err := a.storage.PutSnapshot(ctx, port.SnapshotObject{
		Key:           key,
		SessionID:     sessionID,
		ScenarioName:  envelope.Session.ScenarioName,
		OverallStatus: envelope.Session.OverallStatus.String(),
		ArchivedAt:    archivedAt,
		Body:          body,
	})
	if err != nil {
		a.logger.Error("Failed to upload session snapshot", err, "session_id", sessionID)
		return nil, fmt.Errorf("upload snapshot %s: %w", sessionID, err)
	}

	result := &dto.SnapshotExportDTO{
		SessionID:  sessionID,
		Key:        key,
		URL:        url,
		SizeBytes:  int64(len(body)),
		ArchivedAt: archivedAt,
	}

	if a.metadata != nil {
		record := port.SnapshotMetadata{
			SessionID:     sessionID,
			ScenarioName:  envelope.Session.ScenarioName,
			OverallStatus: envelope.Session.OverallStatus.String(),
			S3Key:         key,
			URL:           url,
			SizeBytes:     result.SizeBytes,
			ArchivedAt:    archivedAt,
		}
		if a.config.MetadataTTL > 0 {
			record.ExpiresAt = archivedAt.Add(a.config.MetadataTTL)
		}
		if err := a.metadata.Put(ctx, record); err != nil {
			// объект уже в S3, индекс можно восстановить позже
			a.logger.Warn("Failed to index session snapshot", "session_id", sessionID, "key", key, "error", err.Error())
		}
	}

	return result, nil
}

func (a *SnapshotArchiver) buildKey(sessionID string, archivedAt time.Time) string {
	prefix := strings.Trim(a.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "snapshots"
	}

	timestamp := archivedAt.Format("20060102T150405Z")
	datePrefix := archivedAt.Format("2006/01/02")

	return fmt.Sprintf("%s/%s/%s/%s_%s.json", prefix, sessionID, datePrefix, timestamp, uuid.NewString()[:8])
}

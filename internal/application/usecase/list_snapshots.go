package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

const (
	defaultSnapshotLimit = 20
	maxSnapshotLimit     = 100
)

// ListSnapshotsUseCase листает индекс архива snapshot'ов сессии
type ListSnapshotsUseCase struct {
	metadata port.SnapshotMetadataRepository
}

func NewListSnapshotsUseCase(metadata port.SnapshotMetadataRepository) *ListSnapshotsUseCase {
	return &ListSnapshotsUseCase{metadata: metadata}
}

func (uc *ListSnapshotsUseCase) Execute(ctx context.Context, sessionID string, limit int, cursor string) (*dto.SnapshotPageDTO, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if uc.metadata == nil {
		return nil, ErrArchiveDisabled
	}

	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}

	page, err := uc.metadata.ListBySession(ctx, port.SnapshotListQuery{
		SessionID: sessionID,
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		if errors.Is(err, port.ErrInvalidCursor) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to list snapshots of %s: %w", sessionID, err)
	}

	items := make([]dto.SnapshotExportDTO, len(page.Items))
	for i, item := range page.Items {
		items[i] = dto.SnapshotExportDTO{
			SessionID:  item.SessionID,
			Key:        item.S3Key,
			URL:        item.URL,
			SizeBytes:  item.SizeBytes,
			ArchivedAt: item.ArchivedAt,
		}
	}
	return &dto.SnapshotPageDTO{Items: items, NextCursor: page.NextCursor}, nil
}

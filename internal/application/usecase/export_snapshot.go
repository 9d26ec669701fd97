package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

// ExportSnapshotUseCase архивирует snapshot по запросу оператора.
// Пока анализатор не готов, экспорт запрещён (ErrNotReady).
type ExportSnapshotUseCase struct {
	gateway  port.SessionGateway
	archiver *SnapshotArchiver
}

func NewExportSnapshotUseCase(gateway port.SessionGateway, archiver *SnapshotArchiver) *ExportSnapshotUseCase {
	return &ExportSnapshotUseCase{
		gateway:  gateway,
		archiver: archiver,
	}
}

func (uc *ExportSnapshotUseCase) Execute(ctx context.Context, sessionID, credential string) (*dto.SnapshotExportDTO, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if !uc.archiver.Enabled() {
		return nil, ErrArchiveDisabled
	}

	envelope, err := uc.gateway.FetchSession(ctx, sessionID, credential)
	if err != nil {
		return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}

	if !envelope.Session.AnalyzerReady {
		return nil, ErrNotReady
	}

	return uc.archiver.Archive(ctx, envelope)
}

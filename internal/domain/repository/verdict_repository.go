package repository

import (
	"context"
	"errors"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// VerdictRepository определяет интерфейс хранения истории вердиктов (Port)
// Реализация будет в Infrastructure слое
type VerdictRepository interface {
	// Save сохраняет вердикт; повторное сохранение той же сессии обновляет запись
	Save(ctx context.Context, record *entity.VerdictRecord) error

	// FindBySessionID находит вердикт сессии
	FindBySessionID(ctx context.Context, sessionID string) (*entity.VerdictRecord, error)

	// FindLatest возвращает последние вердикты, новые первыми
	FindLatest(ctx context.Context, limit int) ([]*entity.VerdictRecord, error)

	// CountByStatus возвращает количество вердиктов по overall_status
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ErrVerdictNotFound возвращается, если вердикт сессии ещё не зафиксирован
var ErrVerdictNotFound = errors.New("verdict not found")

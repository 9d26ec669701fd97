package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
)

const (
	defaultVerdictLimit = 20
	maxVerdictLimit     = 200
)

// ListVerdictsUseCase возвращает историю зафиксированных вердиктов
type ListVerdictsUseCase struct {
	repository repository.VerdictRepository
}

func NewListVerdictsUseCase(repository repository.VerdictRepository) *ListVerdictsUseCase {
	return &ListVerdictsUseCase{repository: repository}
}

func (uc *ListVerdictsUseCase) Execute(ctx context.Context, limit int) ([]*dto.VerdictRecordDTO, error) {
	if limit <= 0 {
		limit = defaultVerdictLimit
	}
	if limit > maxVerdictLimit {
		limit = maxVerdictLimit
	}

	records, err := uc.repository.FindLatest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}

	return dto.ToVerdictRecordDTOs(records), nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
)

// VerdictRepository keeps verdict history in process memory.
// Used when Postgres is disabled (DB_ENABLED=false) and in tests.
type VerdictRepository struct {
	mu        sync.RWMutex
	bySession map[string]*entity.VerdictRecord
}

var _ repository.VerdictRepository = (*VerdictRepository)(nil)

func NewVerdictRepository() *VerdictRepository {
	return &VerdictRepository{bySession: make(map[string]*entity.VerdictRecord)}
}

func (r *VerdictRepository) Save(_ context.Context, record *entity.VerdictRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	r.bySession[record.SessionID] = &copied
	return nil
}

func (r *VerdictRepository) FindBySessionID(_ context.Context, sessionID string) (*entity.VerdictRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.bySession[sessionID]
	if !ok {
		return nil, repository.ErrVerdictNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *VerdictRepository) FindLatest(_ context.Context, limit int) ([]*entity.VerdictRecord, error) {
	r.mu.RLock()
	records := make([]*entity.VerdictRecord, 0, len(r.bySession))
	for _, record := range r.bySession {
		copied := *record
		records = append(records, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *VerdictRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, record := range r.bySession {
		counts[record.OverallStatus.String()]++
	}
	return counts, nil
}

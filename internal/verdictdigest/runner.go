package verdictdigest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

const cycleTimeout = 5 * time.Second

type Runner struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration
	clock    clock.WithTicker

	runMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastRunAt   time.Time
	lastError   string
	lastSummary *CycleSummary
}

func NewRunner(service *Service, log *logger.Logger, interval time.Duration) *Runner {
	return newRunner(service, log, interval, clock.RealClock{})
}

func newRunner(service *Service, log *logger.Logger, interval time.Duration, c clock.WithTicker) *Runner {
	return &Runner{
		service:   service,
		log:       log,
		interval:  interval,
		clock:     c,
		startedAt: c.Now(),
	}
}

// Start пересчитывает сводку сразу и затем раз в interval до отмены ctx.
func (r *Runner) Start(ctx context.Context) {
	_, _ = r.RunOnce(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			// Ошибка уже сохранена в snapshot и залогирована
			_, _ = r.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) RunOnce(ctx context.Context) (*CycleSummary, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	queryCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	summary, err := r.service.Summarize(queryCtx)
	runAt := r.clock.Now()

	if err != nil {
		wrappedErr := fmt.Errorf("digest cycle failed: %w", err)
		r.updateFailure(runAt, wrappedErr)
		r.log.Error("Verdict digest cycle failed", wrappedErr)
		return nil, wrappedErr
	}

	r.updateSuccess(runAt, summary)

	if summary.Sampled == 0 {
		r.log.Debug("Verdict digest cycle completed with empty history")
		return summary, nil
	}

	r.log.Info(
		"Verdict digest cycle completed",
		"sampled", summary.Sampled,
		"scenarios", len(summary.Scenarios),
		"critical_count", summary.CriticalCount,
		"warning_count", summary.WarningCount,
	)

	return summary, nil
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := Snapshot{
		StartedAt: r.startedAt,
		Interval:  r.interval,
		LastRunAt: r.lastRunAt,
		LastError: r.lastError,
	}

	if r.lastSummary != nil {
		copied := *r.lastSummary
		copied.Scenarios = append([]ScenarioDigest(nil), r.lastSummary.Scenarios...)
		copied.TotalsByState = make(map[string]int64, len(r.lastSummary.TotalsByState))
		for status, count := range r.lastSummary.TotalsByState {
			copied.TotalsByState[status] = count
		}
		copied.Metrics = make(map[string]MetricDistribution, len(r.lastSummary.Metrics))
		for metric, distribution := range r.lastSummary.Metrics {
			inner := make(MetricDistribution, len(distribution))
			for status, count := range distribution {
				inner[status] = count
			}
			copied.Metrics[metric] = inner
		}
		snapshot.LastSummary = &copied
	}

	return snapshot
}

// Stale сообщает, что сводка не обновлялась дольше трёх интервалов.
func (r *Runner) Stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.lastRunAt.IsZero() {
		return true
	}
	return r.clock.Since(r.lastRunAt) > r.interval*3
}

func (r *Runner) updateFailure(runAt time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = err.Error()
}

func (r *Runner) updateSuccess(runAt time.Time, summary *CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = ""
	r.lastSummary = summary
}

package verdictdigest

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/utils/clock"

	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

const (
	metricBrand  = "brand"
	metricVolume = "volume"
	metricOSD    = "osd"
)

// Service строит сводку по последним зафиксированным вердиктам.
type Service struct {
	verdicts repository.VerdictRepository
	window   int
	clock    clock.PassiveClock
}

func NewService(verdicts repository.VerdictRepository, window int) *Service {
	return &Service{
		verdicts: verdicts,
		window:   window,
		clock:    clock.RealClock{},
	}
}

func (s *Service) Summarize(ctx context.Context) (*CycleSummary, error) {
	totals, err := s.verdicts.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count verdicts: %w", err)
	}

	records, err := s.verdicts.FindLatest(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("find latest verdicts: %w", err)
	}

	distributions := map[string]MetricDistribution{
		metricBrand:  {},
		metricVolume: {},
		metricOSD:    {},
	}

	now := s.clock.Now()
	summary := &CycleSummary{
		GeneratedAt:   now,
		Window:        s.window,
		Sampled:       len(records),
		TotalsByState: totals,
		Scenarios:     make([]ScenarioDigest, 0, 4),
		Metrics:       distributions,
	}

	byScenario := make(map[string]*ScenarioDigest)
	for _, record := range records {
		name := record.ScenarioName
		if name == "" {
			name = "UNKNOWN"
		}
		digest, ok := byScenario[name]
		if !ok {
			digest = &ScenarioDigest{Scenario: name}
			byScenario[name] = digest
		}

		digest.Total++
		switch record.OverallStatus {
		case valueobject.OverallPass:
			digest.Passed++
		case valueobject.OverallFail:
			digest.Failed++
		}
		if record.Verdict.Conflict {
			digest.Conflicts++
		}
		if record.Verdict.BrandMismatch {
			digest.BrandMismatch++
		}
		// Записи идут новыми первыми
		if digest.LastFinishedAt == "" {
			digest.LastFinishedAt = record.FinishedAt
		}

		summary.Metrics[metricBrand][bucket(record.Verdict.Brand)]++
		summary.Metrics[metricVolume][bucket(record.Verdict.Volume)]++
		summary.Metrics[metricOSD][bucket(record.Verdict.OSD)]++

		if !record.RecordedAt.IsZero() {
			if age := now.Sub(record.RecordedAt); age > summary.OldestSample {
				summary.OldestSample = age
			}
		}
	}

	for _, digest := range byScenario {
		digest.FailRatio = float64(digest.Failed) / float64(digest.Total)
		digest.Severity = severityFor(digest.FailRatio)
		switch digest.Severity {
		case SeverityCritical:
			summary.CriticalCount++
		case SeverityWarning:
			summary.WarningCount++
		}
		summary.Scenarios = append(summary.Scenarios, *digest)
	}
	sort.Slice(summary.Scenarios, func(i, j int) bool {
		return summary.Scenarios[i].Scenario < summary.Scenarios[j].Scenario
	})

	return summary, nil
}

func severityFor(failRatio float64) Severity {
	switch {
	case failRatio >= criticalFailRatio:
		return SeverityCritical
	case failRatio >= warningFailRatio:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// bucket относит сохранённый статус к корзине распределения.
// История могла быть записана старой версией, поэтому без паники.
func bucket(status valueobject.MetricStatus) string {
	if status.Validate() != nil {
		return valueobject.StatusNotEvaluated.String()
	}
	return status.String()
}

package observability

import (
	"context"
	"errors"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// VerdictMetrics публикует вердикт во все настроенные системы метрик
type VerdictMetrics []port.VerdictMetricsPublisher

var _ port.VerdictMetricsPublisher = VerdictMetrics(nil)

func (v VerdictMetrics) PublishVerdict(ctx context.Context, scenario string, verdict entity.Verdict) error {
	var errs []error
	for _, publisher := range v {
		if err := publisher.PublishVerdict(ctx, scenario, verdict); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v VerdictMetrics) Flush(ctx context.Context) error {
	var errs []error
	for _, publisher := range v {
		if err := publisher.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package port

import (
	"context"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// VerdictMetricsPublisher defines the interface for publishing verdict statistics
// to external observability platforms.
type VerdictMetricsPublisher interface {
	// PublishVerdict buffers per-metric status datapoints of one finalized session.
	PublishVerdict(ctx context.Context, scenario string, verdict entity.Verdict) error

	// Flush forces immediate publication of any buffered datapoints.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}

package cloudwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond
)

// Metric names published per finalized session.
const (
	MetricVerdictStatus   = "VerdictStatus"
	MetricBrandMismatch   = "BrandMismatch"
	MetricVerdictConflict = "VerdictConflict"
)

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "QuickSet/Verdicts")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	BufferSize        int               // Buffer size before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
}

// MetricsPublisher publishes verdict counters to AWS CloudWatch.
type MetricsPublisher struct {
	client            *cloudwatch.Client
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32
	now               func() time.Time

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

var _ port.VerdictMetricsPublisher = (*MetricsPublisher)(nil)

// NewMetricsPublisher creates a new CloudWatch metrics publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig) (*MetricsPublisher, error) {
	if err := normalizeMetricsConfig(&cfg); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := &MetricsPublisher{
		client:            cloudwatch.NewFromConfig(awsCfg),
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		now:               time.Now,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		flushTicker:       time.NewTicker(cfg.FlushInterval),
		stopCh:            make(chan struct{}),
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p, nil
}

func normalizeMetricsConfig(cfg *MetricsPublisherConfig) error {
	if cfg.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}
	return nil
}

// PublishVerdict buffers one datum per metric status plus mismatch and conflict flags.
func (p *MetricsPublisher) PublishVerdict(ctx context.Context, scenario string, verdict entity.Verdict) error {
	data := p.verdictData(scenario, verdict)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, data...)
	if len(p.buffer) >= p.bufferSize {
		if err := p.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered metrics.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining metrics.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	p.flushTicker.Stop()
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			// ошибка не теряет данные: буфер очищается только после успешной отправки
			_ = p.Flush(ctx)
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(p.buffer) {
			end = len(p.buffer)
		}

		if err := p.publishBatchWithRetry(ctx, p.buffer[i:end]); err != nil {
			// отправленные чанки выкидываем, остаток ждёт следующего flush
			p.buffer = append(p.buffer[:0], p.buffer[i:]...)
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]

	return nil
}

// publishBatchWithRetry publishes a batch of metrics with exponential backoff retry.
func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *MetricsPublisher) verdictData(scenario string, verdict entity.Verdict) []types.MetricDatum {
	timestamp := p.now().UTC()

	statuses := []struct {
		metric string
		status valueobject.MetricStatus
	}{
		{"brand", verdict.Brand},
		{"volume", verdict.Volume},
		{"osd", verdict.OSD},
	}

	data := make([]types.MetricDatum, 0, len(statuses)+2)
	for _, s := range statuses {
		data = append(data, p.datum(MetricVerdictStatus, 1, timestamp,
			"Scenario", scenario,
			"Metric", s.metric,
			"Status", s.status.Normalize().String(),
		))
	}

	data = append(data,
		p.datum(MetricBrandMismatch, boolValue(verdict.BrandMismatch), timestamp, "Scenario", scenario),
		p.datum(MetricVerdictConflict, boolValue(verdict.Conflict), timestamp, "Scenario", scenario),
	)

	return data
}

func (p *MetricsPublisher) datum(name string, value float64, timestamp time.Time, dims ...string) types.MetricDatum {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions)+len(dims)/2)

	for key, val := range p.defaultDimensions {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(val),
		})
	}
	for i := 0; i+1 < len(dims); i += 2 {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(dims[i]),
			Value: aws.String(dims[i+1]),
		})
	}

	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(timestamp),
		Dimensions: dimensions,
	}

	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}

	return datum
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// buildAWSConfig creates an AWS config with credentials.
func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override endpoint if specified (for LocalStack testing)
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}

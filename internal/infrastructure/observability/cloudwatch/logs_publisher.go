package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	applicationPort "github.com/dreschagin/quickset-dashboard/internal/application/port"
)

const (
	// CloudWatch Logs limits
	maxLogEventsPerRequest = 10000
	maxLogEventSize        = 256000 // 256 KB

	// maxBufferedEntries ограничивает память при недоступности CloudWatch
	maxBufferedEntries = 5000

	serviceName = "quickset-dashboard"
)

// LogsPublisherConfig holds configuration for CloudWatch logs publishing.
type LogsPublisherConfig struct {
	LogGroupName    string // CloudWatch log group name
	LogStreamName   string // CloudWatch log stream name
	Region          string // AWS region
	Endpoint        string // Optional endpoint override (for LocalStack)
	AccessKeyID     string // AWS access key
	SecretAccessKey string // AWS secret key
	BufferSize      int    // Buffer size before auto-flush
	FlushInterval   time.Duration
	AutoCreate      bool // Automatically create log group/stream if missing
}

// LogsPublisher mirrors dashboard logs to AWS CloudWatch Logs.
// session_id поднимается на верхний уровень записи для Logs Insights.
type LogsPublisher struct {
	client        *cloudwatchlogs.Client
	logGroupName  string
	logStreamName string

	buffer     []applicationPort.LogEntry
	bufferSize int
	dropped    int
	mu         sync.Mutex

	sequenceToken *string

	flushTicker *time.Ticker
	flushCh     chan struct{}
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

var _ applicationPort.LogPublisher = (*LogsPublisher)(nil)

// NewLogsPublisher creates a new CloudWatch logs publisher.
func NewLogsPublisher(ctx context.Context, cfg LogsPublisherConfig) (*LogsPublisher, error) {
	if err := normalizeLogsConfig(&cfg); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := &LogsPublisher{
		client:        cloudwatchlogs.NewFromConfig(awsCfg),
		logGroupName:  cfg.LogGroupName,
		logStreamName: cfg.LogStreamName,
		buffer:        make([]applicationPort.LogEntry, 0, cfg.BufferSize),
		bufferSize:    cfg.BufferSize,
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		flushCh:       make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}

	if cfg.AutoCreate {
		if err := p.ensureLogGroupAndStream(ctx); err != nil {
			return nil, fmt.Errorf("failed to create log group/stream: %w", err)
		}
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p, nil
}

func normalizeLogsConfig(cfg *LogsPublisherConfig) error {
	if cfg.LogGroupName == "" {
		return fmt.Errorf("log group name is required")
	}
	if cfg.LogStreamName == "" {
		return fmt.Errorf("log stream name is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return nil
}

// Publish buffers a single entry. Отправка идёт из фонового flushLoop,
// чтобы вызов логгера не ждал сети.
func (p *LogsPublisher) Publish(_ context.Context, entry applicationPort.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.appendUnsafe(entry)
	return nil
}

// PublishBatch buffers multiple entries.
func (p *LogsPublisher) PublishBatch(_ context.Context, entries []applicationPort.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range entries {
		p.appendUnsafe(entry)
	}
	return nil
}

// Flush forces immediate publication of all buffered log entries.
func (p *LogsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining logs.
func (p *LogsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	p.flushTicker.Stop()
	p.wg.Wait()

	return p.Flush(ctx)
}

// appendUnsafe добавляет запись, вытесняя самые старые при переполнении.
// Заполненный буфер будит flushLoop раньше тикера.
func (p *LogsPublisher) appendUnsafe(entry applicationPort.LogEntry) {
	if len(p.buffer) >= maxBufferedEntries {
		p.buffer = append(p.buffer[:0], p.buffer[1:]...)
		p.dropped++
	}
	p.buffer = append(p.buffer, entry)

	if p.bufferSize > 0 && len(p.buffer) >= p.bufferSize {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
}

func (p *LogsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
		case <-p.flushCh:
		case <-p.stopCh:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = p.Flush(ctx)
		cancel()
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *LogsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	if p.dropped > 0 {
		p.buffer = append(p.buffer, applicationPort.LogEntry{
			Timestamp: time.Now(),
			Level:     applicationPort.LogLevelWarn,
			Message:   "Log entries dropped while CloudWatch was unavailable",
			Fields:    map[string]interface{}{"dropped": p.dropped},
		})
		p.dropped = 0
	}

	events := p.buildEvents(p.buffer)
	for i := 0; i < len(events); i += maxLogEventsPerRequest {
		end := i + maxLogEventsPerRequest
		if end > len(events) {
			end = len(events)
		}

		if err := p.publishLogEventsWithRetry(ctx, events[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]

	return nil
}

// buildEvents sorts entries chronologically (CloudWatch Logs requirement) and skips malformed ones.
func (p *LogsPublisher) buildEvents(entries []applicationPort.LogEntry) []types.InputLogEvent {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	events := make([]types.InputLogEvent, 0, len(entries))
	for _, entry := range entries {
		event, err := p.convertToLogEvent(entry)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events
}

func (p *LogsPublisher) publishLogEventsWithRetry(ctx context.Context, events []types.InputLogEvent) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		output, err := p.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(p.logGroupName),
			LogStreamName: aws.String(p.logStreamName),
			LogEvents:     events,
			SequenceToken: p.sequenceToken,
		})
		if err == nil {
			p.sequenceToken = output.NextSequenceToken
			return nil
		}

		var invalidSeqErr *types.InvalidSequenceTokenException
		if errors.As(err, &invalidSeqErr) {
			p.sequenceToken = invalidSeqErr.ExpectedSequenceToken
			continue
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

// convertToLogEvent converts a LogEntry to CloudWatch InputLogEvent.
func (p *LogsPublisher) convertToLogEvent(entry applicationPort.LogEntry) (types.InputLogEvent, error) {
	logData := map[string]interface{}{
		"timestamp": entry.Timestamp.Format(time.RFC3339Nano),
		"level":     string(entry.Level),
		"message":   entry.Message,
		"service":   serviceName,
	}

	if len(entry.Fields) > 0 {
		fields := make(map[string]interface{}, len(entry.Fields))
		for key, value := range entry.Fields {
			if key == "session_id" {
				logData["session_id"] = value
				continue
			}
			fields[key] = value
		}
		if len(fields) > 0 {
			logData["fields"] = fields
		}
	}

	messageJSON, err := json.Marshal(logData)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("failed to marshal log entry: %w", err)
	}

	message := string(messageJSON)
	if len(message) > maxLogEventSize {
		message = message[:maxLogEventSize-3] + "..."
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	}, nil
}

// ensureLogGroupAndStream creates the log group and stream if they don't exist.
func (p *LogsPublisher) ensureLogGroupAndStream(ctx context.Context) error {
	var alreadyExists *types.ResourceAlreadyExistsException

	_, err := p.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(p.logGroupName),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log group: %w", err)
	}

	_, err = p.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(p.logGroupName),
		LogStreamName: aws.String(p.logStreamName),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log stream: %w", err)
	}

	return nil
}

package port

import (
	"context"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is a structured log line mirrored to an external log system.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher mirrors application logs to an external platform.
// pkg/logger depends on this port, so it must stay free of logger imports.
type LogPublisher interface {
	// Publish buffers a single log entry.
	Publish(ctx context.Context, entry LogEntry) error

	// PublishBatch sends multiple entries respecting the backend's batch limits.
	PublishBatch(ctx context.Context, entries []LogEntry) error

	// Flush forces immediate publication of any buffered entries.
	Flush(ctx context.Context) error
}

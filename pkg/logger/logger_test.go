package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

type recordingPublisher struct {
	mu      sync.Mutex
	entries []port.LogEntry
}

func (p *recordingPublisher) Publish(_ context.Context, entry port.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, entries []port.LogEntry) error {
	for _, entry := range entries {
		_ = p.Publish(ctx, entry)
	}
	return nil
}

func (p *recordingPublisher) Flush(context.Context) error { return nil }

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, parseLevel("debug"))
	assert.Equal(t, WARN, parseLevel("warn"))
	assert.Equal(t, ERROR, parseLevel("error"))
	assert.Equal(t, INFO, parseLevel(""))
	assert.Equal(t, INFO, parseLevel("verbose"))
}

func TestLoggerMirrorsEntriesToPublisher(t *testing.T) {
	publisher := &recordingPublisher{}
	log := New("warn")
	log.SetLogPublisher(publisher)

	log.Info("filtered out")
	log.Warn("poll failed", "session_id", "s-1", "generation", 3)

	require.Len(t, publisher.entries, 1)
	entry := publisher.entries[0]
	assert.Equal(t, port.LogLevelWarn, entry.Level)
	assert.Equal(t, "poll failed", entry.Message)
	assert.Equal(t, "s-1", entry.Fields["session_id"])
	assert.Equal(t, 3, entry.Fields["generation"])

	log.SetLogPublisher(nil)
	log.Error("not mirrored", nil)
	assert.Len(t, publisher.entries, 1)
}

package port

import (
	"context"
	"time"
)

// VerdictFinalizedEvent публикуется один раз на терминальную сессию.
type VerdictFinalizedEvent struct {
	EventID       string    `json:"event_id"`
	SessionID     string    `json:"session_id"`
	ScenarioName  string    `json:"scenario_name"`
	OverallStatus string    `json:"overall_status"`
	BrandStatus   string    `json:"brand_status"`
	VolumeStatus  string    `json:"volume_status"`
	OSDStatus     string    `json:"osd_status"`
	BrandMismatch bool      `json:"brand_mismatch"`
	Conflict      bool      `json:"conflict"`
	SnapshotKey   string    `json:"snapshot_key,omitempty"`
	FinalizedAt   time.Time `json:"finalized_at"`
}

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// PublishVerdictFinalized publishes the event to the configured subject
	PublishVerdictFinalized(ctx context.Context, event VerdictFinalizedEvent) error

	// Close closes the connection to the message broker
	Close() error
}

package port

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidCursor возвращается для испорченного или чужого курсора страницы.
var ErrInvalidCursor = errors.New("invalid cursor")

// SnapshotObject — JSON snapshot сессии с атрибутами для метаданных объекта.
type SnapshotObject struct {
	Key           string
	SessionID     string
	ScenarioName  string
	OverallStatus string
	ArchivedAt    time.Time
	Body          []byte
}

// SnapshotStorage определяет интерфейс архива snapshot'ов сессий.
type SnapshotStorage interface {
	// PutSnapshot загружает snapshot и возвращает URL для чтения.
	PutSnapshot(ctx context.Context, object SnapshotObject) (string, error)
}

// SnapshotMetadata представляет метаданные заархивированного snapshot'а.
type SnapshotMetadata struct {
	SessionID     string
	ScenarioName  string
	OverallStatus string
	S3Key         string
	URL           string
	SizeBytes     int64
	ArchivedAt    time.Time
	ExpiresAt     time.Time
}

// SnapshotListQuery определяет параметры выборки архива сессии.
type SnapshotListQuery struct {
	SessionID string
	Limit     int
	Cursor    string
}

// SnapshotListPage содержит результат выборки и курсор следующей страницы.
type SnapshotListPage struct {
	Items      []SnapshotMetadata
	NextCursor string
}

// SnapshotMetadataRepository определяет интерфейс индекса архива.
type SnapshotMetadataRepository interface {
	Put(ctx context.Context, record SnapshotMetadata) error
	ListBySession(ctx context.Context, query SnapshotListQuery) (SnapshotListPage, error)
}

package dto

import (
	"time"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// VerdictDTO представляет вердикт вместе с текстами бейджей
type VerdictDTO struct {
	entity.Verdict
	Labels entity.VerdictLabels `json:"labels"`
}

// NewVerdictDTO конвертирует вердикт в DTO
func NewVerdictDTO(verdict entity.Verdict) *VerdictDTO {
	return &VerdictDTO{
		Verdict: verdict,
		Labels:  verdict.Labels(),
	}
}

// SessionVerdictDTO — snapshot сессии и вычисленный по нему вердикт
type SessionVerdictDTO struct {
	Session  *entity.SessionEnvelope `json:"session"`
	Verdict  *VerdictDTO             `json:"verdict"`
	Terminal bool                    `json:"terminal"`
	Cached   bool                    `json:"cached"`
}

// SessionUpdateDTO — состояние подписки polling'а, отправляемое через WebSocket
type SessionUpdateDTO struct {
	Generation uint64                  `json:"generation"`
	SessionID  string                  `json:"session_id,omitempty"`
	Session    *entity.SessionEnvelope `json:"session"`
	Verdict    *VerdictDTO             `json:"verdict,omitempty"`
	Error      *string                 `json:"error"`
	Polling    bool                    `json:"polling"`
	Timestamp  time.Time               `json:"timestamp"`
}

// VerdictRecordDTO представляет запись истории вердиктов
type VerdictRecordDTO struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	ScenarioName  string      `json:"scenario_name"`
	OverallStatus string      `json:"overall_status"`
	Verdict       *VerdictDTO `json:"verdict"`
	SnapshotKey   string      `json:"snapshot_key,omitempty"`
	FinishedAt    string      `json:"finished_at,omitempty"`
	RecordedAt    time.Time   `json:"recorded_at"`
}

// FromVerdictRecord конвертирует запись истории в DTO
func FromVerdictRecord(record *entity.VerdictRecord) *VerdictRecordDTO {
	return &VerdictRecordDTO{
		ID:            record.ID,
		SessionID:     record.SessionID,
		ScenarioName:  record.ScenarioName,
		OverallStatus: record.OverallStatus.String(),
		Verdict:       NewVerdictDTO(record.Verdict),
		SnapshotKey:   record.SnapshotKey,
		FinishedAt:    record.FinishedAt,
		RecordedAt:    record.RecordedAt,
	}
}

// ToVerdictRecordDTOs конвертирует слайс записей в слайс DTO
func ToVerdictRecordDTOs(records []*entity.VerdictRecord) []*VerdictRecordDTO {
	dtos := make([]*VerdictRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = FromVerdictRecord(r)
	}
	return dtos
}

// SnapshotExportDTO — результат архивации snapshot'а
type SnapshotExportDTO struct {
	SessionID  string    `json:"session_id"`
	Key        string    `json:"key"`
	URL        string    `json:"url,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	ArchivedAt time.Time `json:"archived_at"`
}

// SnapshotPageDTO — страница индекса архива сессии
type SnapshotPageDTO struct {
	Items      []SnapshotExportDTO `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

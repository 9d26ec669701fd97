package entity

import (
	"time"

	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

// Verdict — результат сверки трёх источников истины для одной сессии.
// Не хранится в backend'е, пересчитывается на каждый snapshot.
type Verdict struct {
	Ready bool `json:"analyzer_ready"`

	Brand  valueobject.MetricStatus `json:"brand_status"`
	Volume valueobject.MetricStatus `json:"volume_status"`
	OSD    valueobject.MetricStatus `json:"osd_status"`

	PreferredUserBrand string `json:"preferred_user_brand,omitempty"`
	PreferredLogBrand  string `json:"preferred_log_brand,omitempty"`
	BrandMismatch      bool   `json:"brand_mismatch"`

	// Конфликт тестировщика и логов показывается отдельно и не влияет на статусы метрик
	Conflict       bool   `json:"conflict"`
	ConflictReason string `json:"conflict_reason,omitempty"`

	TesterVerdict  valueobject.TesterVerdict  `json:"tester_verdict,omitempty"`
	LogVerdict     valueobject.LogVerdict     `json:"log_verdict,omitempty"`
	TelemetryState valueobject.TelemetryState `json:"telemetry_state,omitempty"`
	FailureReason  string                     `json:"failure_reason,omitempty"`
}

// VerdictLabels — тексты бейджей для трёх метрик.
type VerdictLabels struct {
	Brand  string `json:"brand"`
	Volume string `json:"volume"`
	OSD    string `json:"osd"`
}

// Labels возвращает тексты бейджей
func (v Verdict) Labels() VerdictLabels {
	return VerdictLabels{
		Brand:  v.Brand.Label(),
		Volume: v.Volume.Label(),
		OSD:    v.OSD.Label(),
	}
}

// HasFailure сообщает, подтверждена ли хоть одна проблема
func (v Verdict) HasFailure() bool {
	for _, status := range []valueobject.MetricStatus{v.Brand, v.Volume, v.OSD} {
		if status == valueobject.StatusFail || status == valueobject.StatusIncompatibility {
			return true
		}
	}
	return false
}

// VerdictRecord — зафиксированный вердикт терминальной сессии (история).
type VerdictRecord struct {
	ID            string
	SessionID     string
	ScenarioName  string
	OverallStatus valueobject.OverallStatus
	Verdict       Verdict
	SnapshotKey   string
	FinishedAt    string
	RecordedAt    time.Time
}

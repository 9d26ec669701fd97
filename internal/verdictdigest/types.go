package verdictdigest

import "time"

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Пороги доли FAIL среди завершённых сессий сценария
const (
	warningFailRatio  = 0.2
	criticalFailRatio = 0.5
)

// ScenarioDigest агрегирует завершённые сессии одного сценария в окне.
type ScenarioDigest struct {
	Scenario       string   `json:"scenario"`
	Total          int      `json:"total"`
	Passed         int      `json:"passed"`
	Failed         int      `json:"failed"`
	Conflicts      int      `json:"conflicts"`
	BrandMismatch  int      `json:"brand_mismatches"`
	FailRatio      float64  `json:"fail_ratio"`
	Severity       Severity `json:"severity"`
	LastFinishedAt string   `json:"last_finished_at,omitempty"`
}

// MetricDistribution считает статусы одной метрики (brand/volume/osd).
type MetricDistribution map[string]int

type CycleSummary struct {
	GeneratedAt   time.Time                     `json:"generated_at"`
	Window        int                           `json:"window"`
	Sampled       int                           `json:"sampled"`
	TotalsByState map[string]int64              `json:"totals_by_status"`
	Scenarios     []ScenarioDigest              `json:"scenarios"`
	Metrics       map[string]MetricDistribution `json:"metrics"`
	CriticalCount int                           `json:"critical_count"`
	WarningCount  int                           `json:"warning_count"`
	OldestSample  time.Duration                 `json:"oldest_sample_age"`
}

type Snapshot struct {
	StartedAt   time.Time     `json:"started_at"`
	Interval    time.Duration `json:"interval"`
	LastRunAt   time.Time     `json:"last_run_at"`
	LastError   string        `json:"last_error,omitempty"`
	LastSummary *CycleSummary `json:"last_summary,omitempty"`
}

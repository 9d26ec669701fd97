package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

// BrandConfirmationStep — шаг, на котором тестировщик подтверждает бренд ТВ.
const BrandConfirmationStep = "question_tv_brand_ui"

// AnalysisEvidence — структурированный результат анализатора (details шага analysis_summary).
type AnalysisEvidence struct {
	Analysis             string                     `json:"analysis,omitempty"`
	TesterVerdict        valueobject.TesterVerdict  `json:"tester_verdict,omitempty"`
	LogVerdict           valueobject.LogVerdict     `json:"log_verdict,omitempty"`
	TelemetryState       valueobject.TelemetryState `json:"telemetry_state,omitempty"`
	ConflictTesterVsLogs bool                       `json:"conflict_tester_vs_logs,omitempty"`
	LogFailureReason     string                     `json:"log_failure_reason,omitempty"`
	FailedSteps          []string                   `json:"failed_steps,omitempty"`
	AwaitingSteps        []string                   `json:"awaiting_steps,omitempty"`
	Confidence           string                     `json:"confidence,omitempty"`
	Evidence             map[string]json.RawMessage `json:"evidence,omitempty"`

	BrandStatus  valueobject.MetricStatus `json:"brand_status,omitempty"`
	VolumeStatus valueobject.MetricStatus `json:"volume_status,omitempty"`
	OSDStatus    valueobject.MetricStatus `json:"osd_status,omitempty"`

	TVBrandUser string `json:"tv_brand_user,omitempty"`
	TVBrandLog  string `json:"tv_brand_log,omitempty"`
}

// HasFailedStep проверяет, числится ли шаг среди проваленных
func (a *AnalysisEvidence) HasFailedStep(name string) bool {
	if a == nil {
		return false
	}
	for _, step := range a.FailedSteps {
		if step == name {
			return true
		}
	}
	return false
}

// EvidenceString возвращает значение ключа из сырого evidence как строку.
// Числа и bool форматируются, null и отсутствие дают "".
func (a *AnalysisEvidence) EvidenceString(key string) string {
	if a == nil || a.Evidence == nil {
		return ""
	}
	raw, ok := a.Evidence[key]
	if !ok || len(raw) == 0 {
		return ""
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}

	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// DerivedBrands возвращает пару брендов (user, log) из сырого evidence,
// с откатом к полям верхнего уровня payload'а. Анализатор пишет бренд из
// логов как tv_brand_detected, tv_brand_log проверяется первым.
func (a *AnalysisEvidence) DerivedBrands() (user, log string) {
	if a == nil {
		return "", ""
	}
	user = a.EvidenceString("tv_brand_user")
	if user == "" {
		user = strings.TrimSpace(a.TVBrandUser)
	}
	log = a.EvidenceString("tv_brand_log")
	if log == "" {
		log = a.EvidenceString("tv_brand_detected")
	}
	if log == "" {
		log = strings.TrimSpace(a.TVBrandLog)
	}
	return user, log
}

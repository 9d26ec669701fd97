package entity

import (
	"errors"
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

// ErrSessionNotFound возвращается, когда backend не знает такой сессии.
var ErrSessionNotFound = errors.New("quickset session not found")

// Session представляет один прогон сценария на приставке.
// Мутирует только через новые snapshot'ы от backend'а; после IsComplete неизменяема.
type Session struct {
	SessionID     string                    `json:"session_id"`
	ScenarioName  string                    `json:"scenario_name"`
	StartedAt     *string                   `json:"started_at"`
	FinishedAt    *string                   `json:"finished_at"`
	OverallStatus valueobject.OverallStatus `json:"overall_status"`
	HasFailure    bool                      `json:"has_failure"`
	BrandMismatch bool                      `json:"brand_mismatch"`
	TVBrandUser   *string                   `json:"tv_brand_user"`
	TVBrandLog    *string                   `json:"tv_brand_log"`

	HasVolumeIssue bool `json:"has_volume_issue"`
	HasOSDIssue    bool `json:"has_osd_issue"`
	AnalyzerReady  bool `json:"analyzer_ready"`

	AnalysisText string `json:"analysis_text,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// Авторитетные значения от backend'а; пустая строка = значения нет
	BrandStatus  valueobject.MetricStatus `json:"brand_status,omitempty"`
	VolumeStatus valueobject.MetricStatus `json:"volume_status,omitempty"`
	OSDStatus    valueobject.MetricStatus `json:"osd_status,omitempty"`
}

// IsFinished сообщает, выставлен ли finished_at
func (s *Session) IsFinished() bool {
	return s != nil && s.FinishedAt != nil && strings.TrimSpace(*s.FinishedAt) != ""
}

// IsComplete — терминальное состояние для polling'а: сессия завершена и анализ готов
func (s *Session) IsComplete() bool {
	return s.IsFinished() && s.AnalyzerReady
}

// IsEvaluated — готовность к сверке: сессия завершена или итог уже окончательный
func (s *Session) IsEvaluated() bool {
	if s == nil {
		return false
	}
	return s.IsFinished() || s.OverallStatus.IsTerminal()
}

// UserBrand возвращает бренд ТВ со слов тестировщика ("" если нет)
func (s *Session) UserBrand() string {
	if s == nil {
		return ""
	}
	return derefTrimmed(s.TVBrandUser)
}

// LogBrand возвращает бренд ТВ по логам ("" если нет)
func (s *Session) LogBrand() string {
	if s == nil {
		return ""
	}
	return derefTrimmed(s.TVBrandLog)
}

func derefTrimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

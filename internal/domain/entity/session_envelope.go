package entity

import (
	"bytes"
	"encoding/json"
)

// AnalysisSummaryStep — имя шага timeline, в котором анализатор публикует evidence.
const AnalysisSummaryStep = "analysis_summary"

// TimelineEvent представляет шаг сценария в timeline сессии.
type TimelineEvent struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Question   string          `json:"question,omitempty"`
	UserAnswer string          `json:"user_answer,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// SessionEnvelope — ответ backend'а: сессия плюс её timeline.
type SessionEnvelope struct {
	Session    Session         `json:"session"`
	Timeline   []TimelineEvent `json:"timeline"`
	HasFailure *bool           `json:"has_failure,omitempty"`
}

// IsComplete делегирует проверку терминального состояния сессии
func (e *SessionEnvelope) IsComplete() bool {
	return e != nil && e.Session.IsComplete()
}

// FindStep возвращает первый шаг timeline с указанным именем
func (e *SessionEnvelope) FindStep(name string) (*TimelineEvent, bool) {
	if e == nil {
		return nil, false
	}
	for i := range e.Timeline {
		if e.Timeline[i].Name == name {
			return &e.Timeline[i], true
		}
	}
	return nil, false
}

// AnalysisEvidence декодирует details шага analysis_summary.
// Возвращает nil, если шага нет или details не разбираются.
func (e *SessionEnvelope) AnalysisEvidence() *AnalysisEvidence {
	step, ok := e.FindStep(AnalysisSummaryStep)
	if !ok || len(step.Details) == 0 || bytes.Equal(bytes.TrimSpace(step.Details), []byte("null")) {
		return nil
	}

	var evidence AnalysisEvidence
	if err := json.Unmarshal(step.Details, &evidence); err != nil {
		return nil
	}
	return &evidence
}

// Clone возвращает глубокую копию envelope через JSON
func (e *SessionEnvelope) Clone() *SessionEnvelope {
	if e == nil {
		return nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	var out SessionEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

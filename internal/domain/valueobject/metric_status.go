package valueobject

import "fmt"

// MetricStatus представляет tri-state статус отслеживаемой метрики сессии (Value Object).
// Значение вне четырёх допустимых считается ошибкой программирования.
type MetricStatus string

const (
	StatusOK              MetricStatus = "OK"
	StatusFail            MetricStatus = "FAIL"
	StatusIncompatibility MetricStatus = "INCOMPATIBILITY"
	StatusNotEvaluated    MetricStatus = "NOT_EVALUATED"
)

const notEvaluatedLabel = "NOT EVALUATED YET"

// ErrMalformedStatus возвращается для значения вне допустимого набора.
type ErrMalformedStatus struct {
	Value string
}

func (e *ErrMalformedStatus) Error() string {
	return fmt.Sprintf("malformed metric status %q", e.Value)
}

// Validate проверяет, что статус входит в закрытый набор значений
func (s MetricStatus) Validate() error {
	switch s {
	case StatusOK, StatusFail, StatusIncompatibility, StatusNotEvaluated:
		return nil
	default:
		return &ErrMalformedStatus{Value: string(s)}
	}
}

// IsSet сообщает, пришло ли значение от источника вообще (пустая строка = нет значения)
func (s MetricStatus) IsSet() bool {
	return s != ""
}

// Normalize возвращает сам статус либо NOT_EVALUATED для недопустимого значения.
// В debug-сборке недопустимое значение приводит к панике.
func (s MetricStatus) Normalize() MetricStatus {
	if err := s.Validate(); err != nil {
		ReportMalformed(err)
		return StatusNotEvaluated
	}
	return s
}

// Label возвращает текст бейджа для статуса
func (s MetricStatus) Label() string {
	switch s.Normalize() {
	case StatusNotEvaluated:
		return notEvaluatedLabel
	default:
		return string(s)
	}
}

// String возвращает строковое представление статуса
func (s MetricStatus) String() string {
	return string(s)
}

// AllMetricStatuses возвращает список всех допустимых статусов
func AllMetricStatuses() []MetricStatus {
	return []MetricStatus{StatusOK, StatusFail, StatusIncompatibility, StatusNotEvaluated}
}

// ReportMalformed паникует в debug-сборке и ничего не делает в production.
func ReportMalformed(err error) {
	if strictStatuses {
		panic(err)
	}
}

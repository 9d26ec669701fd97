package valueobject

import "strings"

// OverallStatus представляет итоговый статус сессии, выставленный backend'ом.
// Набор открытый: backend может добавлять новые промежуточные состояния.
type OverallStatus string

const (
	OverallPass          OverallStatus = "PASS"
	OverallFail          OverallStatus = "FAIL"
	OverallPending       OverallStatus = "PENDING"
	OverallAwaitingInput OverallStatus = "AWAITING_INPUT"
	OverallInfo          OverallStatus = "INFO"
	OverallRunning       OverallStatus = "RUNNING"
)

// IsTerminal сообщает, является ли статус окончательным (PASS или FAIL)
func (s OverallStatus) IsTerminal() bool {
	switch OverallStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case OverallPass, OverallFail:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление статуса
func (s OverallStatus) String() string {
	return string(s)
}

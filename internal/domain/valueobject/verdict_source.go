package valueobject

import "strings"

// TesterVerdict — итог, выведенный из ответов тестировщика.
type TesterVerdict string

const (
	TesterPass    TesterVerdict = "PASS"
	TesterFail    TesterVerdict = "FAIL"
	TesterUnknown TesterVerdict = "UNKNOWN"
)

// LogVerdict — итог, выведенный анализатором из логов устройства.
type LogVerdict string

const (
	LogPass         LogVerdict = "PASS"
	LogFail         LogVerdict = "FAIL"
	LogInconclusive LogVerdict = "INCONCLUSIVE"
)

// TelemetryState описывает, кто управлял ТВ по данным телеметрии.
type TelemetryState string

const (
	TelemetryTVControl           TelemetryState = "TV_CONTROL"
	TelemetrySTBControlConfident TelemetryState = "STB_CONTROL_CONFIDENT"
	TelemetryUnknown             TelemetryState = "UNKNOWN"
)

// Is сравнивает вердикт без учёта регистра
func (v TesterVerdict) Is(other TesterVerdict) bool {
	return strings.EqualFold(strings.TrimSpace(string(v)), string(other))
}

// Is сравнивает вердикт без учёта регистра
func (v LogVerdict) Is(other LogVerdict) bool {
	return strings.EqualFold(strings.TrimSpace(string(v)), string(other))
}

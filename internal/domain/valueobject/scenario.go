package valueobject

import (
	"errors"
	"strings"
)

// ScenarioName представляет сценарий, который умеет запускать backend.
type ScenarioName string

const (
	ScenarioTVAutoSync        ScenarioName = "TV_AUTO_SYNC"
	ScenarioLiveButtonMapping ScenarioName = "LIVE_BUTTON_MAPPING"
)

// ErrUnsupportedScenario возвращается для неизвестного сценария.
var ErrUnsupportedScenario = errors.New("unsupported scenario")

// ParseScenarioName нормализует имя сценария (регистр не важен)
func ParseScenarioName(raw string) (ScenarioName, error) {
	name := ScenarioName(strings.ToUpper(strings.TrimSpace(raw)))
	switch name {
	case ScenarioTVAutoSync, ScenarioLiveButtonMapping:
		return name, nil
	default:
		return "", ErrUnsupportedScenario
	}
}

// String возвращает строковое представление сценария
func (s ScenarioName) String() string {
	return string(s)
}

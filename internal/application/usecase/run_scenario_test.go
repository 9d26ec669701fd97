package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

func TestRunScenarioUseCase(t *testing.T) {
	gateway := newMockGateway()
	uc := NewRunScenarioUseCase(gateway, logger.New("error"))

	res, err := uc.Execute(context.Background(), "key", RunScenarioCommand{
		TesterID:     "tester-01",
		STBIP:        "192.168.1.20:5555",
		ScenarioName: "live_button_mapping",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.SessionID != "QS_NEW" {
		t.Fatalf("unexpected session id %s", res.SessionID)
	}
	if gateway.runCmd.ScenarioName != "LIVE_BUTTON_MAPPING" {
		t.Fatalf("scenario name must be normalized, got %s", gateway.runCmd.ScenarioName)
	}
	if gateway.runCmd.ExpectedChannel == nil || *gateway.runCmd.ExpectedChannel != defaultExpectedChannel {
		t.Fatalf("expected default channel for live button mapping")
	}
}

func TestRunScenarioUseCase_ValidationErrors(t *testing.T) {
	zero := 0
	tests := []struct {
		name string
		cmd  RunScenarioCommand
	}{
		{"unsupported scenario", RunScenarioCommand{TesterID: "t", STBIP: "10.0.0.1", ScenarioName: "BATTERY_STATUS"}},
		{"missing tester", RunScenarioCommand{STBIP: "10.0.0.1", ScenarioName: "TV_AUTO_SYNC"}},
		{"bad stb ip", RunScenarioCommand{TesterID: "t", STBIP: "stb.local", ScenarioName: "TV_AUTO_SYNC"}},
		{"bad channel", RunScenarioCommand{TesterID: "t", STBIP: "10.0.0.1", ScenarioName: "LIVE_BUTTON_MAPPING", ExpectedChannel: &zero}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gateway := newMockGateway()
			uc := NewRunScenarioUseCase(gateway, logger.New("error"))

			_, err := uc.Execute(context.Background(), "key", tc.cmd)
			if !errors.Is(err, ErrInvalidScenarioRequest) {
				t.Fatalf("expected ErrInvalidScenarioRequest, got %v", err)
			}
			if gateway.runCmd != nil {
				t.Fatalf("backend must not be called")
			}
		})
	}
}

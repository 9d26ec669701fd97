package usecase

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// defaultExpectedChannel совпадает со значением backend'а для LIVE_BUTTON_MAPPING
const defaultExpectedChannel = 3

type RunScenarioCommand struct {
	TesterID        string
	STBIP           string
	ScenarioName    string
	ExpectedChannel *int
}

// RunScenarioUseCase запускает сценарий на приставке через backend
type RunScenarioUseCase struct {
	gateway port.SessionGateway
	logger  *logger.Logger
}

func NewRunScenarioUseCase(gateway port.SessionGateway, logger *logger.Logger) *RunScenarioUseCase {
	return &RunScenarioUseCase{
		gateway: gateway,
		logger:  logger,
	}
}

// Execute валидирует запрос и запускает сценарий
func (uc *RunScenarioUseCase) Execute(ctx context.Context, credential string, cmd RunScenarioCommand) (*port.RunScenarioResult, error) {
	scenario, err := valueobject.ParseScenarioName(cmd.ScenarioName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScenarioRequest, err.Error())
	}

	testerID := strings.TrimSpace(cmd.TesterID)
	if testerID == "" {
		return nil, fmt.Errorf("%w: tester_id is required", ErrInvalidScenarioRequest)
	}

	stbIP := strings.TrimSpace(cmd.STBIP)
	if !isValidSTBAddress(stbIP) {
		return nil, fmt.Errorf("%w: invalid stb_ip %q", ErrInvalidScenarioRequest, cmd.STBIP)
	}

	request := port.RunScenarioCommand{
		TesterID:     testerID,
		STBIP:        stbIP,
		ScenarioName: scenario.String(),
	}
	if scenario == valueobject.ScenarioLiveButtonMapping {
		channel := defaultExpectedChannel
		if cmd.ExpectedChannel != nil {
			if *cmd.ExpectedChannel <= 0 {
				return nil, fmt.Errorf("%w: expected_channel must be positive", ErrInvalidScenarioRequest)
			}
			channel = *cmd.ExpectedChannel
		}
		request.ExpectedChannel = &channel
	}

	result, err := uc.gateway.RunScenario(ctx, credential, request)
	if err != nil {
		return nil, fmt.Errorf("run scenario %s: %w", scenario, err)
	}

	uc.logger.Info("Scenario started",
		"session_id", result.SessionID,
		"scenario", scenario.String(),
		"tester_id", testerID)

	return result, nil
}

// isValidSTBAddress принимает IP или IP:port (adb connect)
func isValidSTBAddress(address string) bool {
	if net.ParseIP(address) != nil {
		return true
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil || port == "" {
		return false
	}
	return net.ParseIP(host) != nil
}

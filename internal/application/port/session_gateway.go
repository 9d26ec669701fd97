package port

import (
	"context"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
)

// RunScenarioCommand — параметры запуска сценария на приставке.
type RunScenarioCommand struct {
	TesterID        string `json:"tester_id"`
	STBIP           string `json:"stb_ip"`
	ScenarioName    string `json:"scenario_name"`
	ExpectedChannel *int   `json:"expected_channel,omitempty"`
}

// RunScenarioResult — ответ backend'а на запуск сценария.
type RunScenarioResult struct {
	SessionID    string `json:"session_id"`
	ScenarioName string `json:"scenario_name"`
}

// SessionGateway определяет интерфейс QuickSet backend'а (Port)
// Реализация будет в Infrastructure слое (HTTP клиент)
type SessionGateway interface {
	// FetchSession возвращает текущий snapshot сессии
	FetchSession(ctx context.Context, sessionID, credential string) (*entity.SessionEnvelope, error)

	// SubmitAnswer передаёт ответ тестировщика и возвращает обновлённый snapshot
	SubmitAnswer(ctx context.Context, sessionID, credential, answer string) (*entity.SessionEnvelope, error)

	// RunScenario запускает сценарий и возвращает идентификатор новой сессии
	RunScenario(ctx context.Context, credential string, cmd RunScenarioCommand) (*RunScenarioResult, error)
}

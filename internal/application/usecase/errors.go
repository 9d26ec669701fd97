package usecase

import "errors"

var (
	// ErrInvalidAnswer возвращается для пустого ответа тестировщика
	ErrInvalidAnswer = errors.New("answer is required")
	// ErrInvalidSessionID возвращается для пустого или слишком длинного id
	ErrInvalidSessionID = errors.New("invalid session_id")
	// ErrInvalidScenarioRequest оборачивает ошибки валидации запуска сценария
	ErrInvalidScenarioRequest = errors.New("invalid scenario request")
	// ErrNotReady возвращается, пока анализ сессии не завершён
	ErrNotReady = errors.New("analyzer data not available yet")
	// ErrArchiveDisabled возвращается, если архив snapshot'ов не настроен
	ErrArchiveDisabled = errors.New("snapshot archive is not configured")
)

package port

import "github.com/dreschagin/quickset-dashboard/internal/application/dto"

// NotificationService определяет интерфейс рассылки событий клиентам (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// BroadcastVerdict рассылает финальный вердикт всем подключенным клиентам
	BroadcastVerdict(verdict *dto.VerdictRecordDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}

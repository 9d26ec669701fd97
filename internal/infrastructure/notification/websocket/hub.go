package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/poller"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// Типы сообщений сервер → клиент
const (
	MessageTypeSession = "session"
	MessageTypeVerdict = "verdict"
	MessageTypeError   = "error"
)

// AnswerSubmitter отправляет ответ тестировщика (usecase.SubmitAnswerUseCase)
type AnswerSubmitter interface {
	Execute(ctx context.Context, sessionID, credential, answer string) (*dto.SessionVerdictDTO, error)
}

// Finalizer фиксирует терминальную сессию (usecase.FinalizeSessionUseCase)
type Finalizer interface {
	Execute(ctx context.Context, envelope *entity.SessionEnvelope) (*entity.VerdictRecord, error)
}

// HubConfig — зависимости для подписок клиентов
type HubConfig struct {
	Fetcher           poller.Fetcher
	Reconciler        *service.VerdictReconciler
	Answers           AnswerSubmitter
	Observer          poller.Observer
	ClientsGauge      prometheus.Gauge
	PollInterval      time.Duration
	DefaultCredential string
	FinalizeTimeout   time.Duration
}

// Hub управляет WebSocket клиентами: у каждого клиента свой SessionPoller,
// финальные вердикты рассылаются всем.
// Реализует интерфейс port.NotificationService
type Hub struct {
	clients map[*Client]bool

	broadcast  chan *dto.VerdictRecordDTO
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	config HubConfig

	depsMu    sync.RWMutex
	finalizer Finalizer
	answers   AnswerSubmitter

	logger *logger.Logger
}

var _ port.NotificationService = (*Hub)(nil)

// NewHub создает новый WebSocket hub
func NewHub(config HubConfig, logger *logger.Logger) *Hub {
	if config.PollInterval <= 0 {
		config.PollInterval = poller.DefaultInterval
	}
	if config.FinalizeTimeout <= 0 {
		config.FinalizeTimeout = 30 * time.Second
	}

	return &Hub{
		answers:    config.Answers,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *dto.VerdictRecordDTO, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     config,
		logger:     logger,
	}
}

// SetFinalizer подключает фиксацию вердиктов. Finalizer сам рассылает
// вердикт через hub, поэтому связывается после создания обоих.
func (h *Hub) SetFinalizer(finalizer Finalizer) {
	h.depsMu.Lock()
	defer h.depsMu.Unlock()
	h.finalizer = finalizer
}

// SetAnswerSubmitter подключает отправку ответов (по той же причине, что и SetFinalizer)
func (h *Hub) SetAnswerSubmitter(answers AnswerSubmitter) {
	h.depsMu.Lock()
	defer h.depsMu.Unlock()
	h.answers = answers
}

func (h *Hub) answerSubmitter() AnswerSubmitter {
	h.depsMu.RLock()
	defer h.depsMu.RUnlock()
	return h.answers
}

// Run запускает hub (должен быть запущен в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.setGauge(0)
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.setGauge(total)
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.setGauge(total)
			h.logger.Debug("Client unregistered", "total_clients", total)

		case verdict := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.enqueue(Message{Type: MessageTypeVerdict, Data: verdict}) {
					// Канал клиента заполнен, закрываем соединение
					client.closeSend()
					delete(h.clients, client)
					h.logger.Warn("Client channel full, disconnected")
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.setGauge(total)
			h.logger.Debug("Verdict broadcasted to clients", "session_id", verdict.SessionID)
		}
	}
}

// Register регистрирует нового клиента. После остановки hub'а клиент сразу закрывается.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

// BroadcastVerdict отправляет финальный вердикт всем клиентам (реализация port.NotificationService)
func (h *Hub) BroadcastVerdict(verdict *dto.VerdictRecordDTO) {
	select {
	case h.broadcast <- verdict:
	default:
		h.logger.Warn("Broadcast channel full, dropping verdict", "session_id", verdict.SessionID)
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.NotificationService)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) newPoller(listener poller.Listener) *poller.SessionPoller {
	opts := []poller.Option{
		poller.WithInterval(h.config.PollInterval),
		poller.WithListener(listener),
		poller.WithLogger(h.logger),
	}
	if h.config.Observer != nil {
		opts = append(opts, poller.WithObserver(h.config.Observer))
	}
	return poller.New(h.config.Fetcher, opts...)
}

func (h *Hub) reconcile(envelope *entity.SessionEnvelope) *dto.VerdictDTO {
	if envelope == nil || h.config.Reconciler == nil {
		return nil
	}
	return dto.NewVerdictDTO(h.config.Reconciler.Reconcile(&envelope.Session, envelope.AnalysisEvidence()))
}

// finalize фиксирует вердикт вне потока уведомлений poller'а
func (h *Hub) finalize(envelope *entity.SessionEnvelope) {
	h.depsMu.RLock()
	finalizer := h.finalizer
	h.depsMu.RUnlock()
	if finalizer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.config.FinalizeTimeout)
		defer cancel()

		if _, err := finalizer.Execute(ctx, envelope); err != nil {
			h.logger.Error("Failed to finalize session verdict", err, "session_id", envelope.Session.SessionID)
		}
	}()
}

func (h *Hub) setGauge(total int) {
	if h.config.ClientsGauge != nil {
		h.config.ClientsGauge.Set(float64(total))
	}
}

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "session", "verdict" или "error"
	Data interface{} `json:"data"`
}

// ErrorPayload — данные сообщения об ошибке
type ErrorPayload struct {
	Message string `json:"message"`
}

package poller

import (
	"context"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// DefaultInterval — фиксированный интервал между опросами backend'а.
const DefaultInterval = 2000 * time.Millisecond

// Fetcher загружает snapshot сессии. port.SessionGateway удовлетворяет этому интерфейсу.
type Fetcher interface {
	FetchSession(ctx context.Context, sessionID, credential string) (*entity.SessionEnvelope, error)
}

// FetchResult классифицирует исход одного запроса.
type FetchResult string

const (
	FetchApplied    FetchResult = "applied"
	FetchFailed     FetchResult = "error"
	FetchStale      FetchResult = "stale"
	FetchSuperseded FetchResult = "superseded"
)

// Observer получает статистику опроса (Prometheus в production).
type Observer interface {
	FetchCompleted(result FetchResult)
	SubscriptionsChanged(delta int)
}

// State — наблюдаемое состояние подписки: пара {snapshot, error}.
type State struct {
	SessionID  string
	Snapshot   *entity.SessionEnvelope
	Error      string
	Generation uint64
	Polling    bool
	Terminal   bool

	seq uint64
}

// HasError сообщает, хранит ли состояние ошибку последнего запроса
func (s State) HasError() bool {
	return s.Error != ""
}

// Listener вызывается на каждое изменение состояния, в порядке изменений.
// Не должен вызывать методы poller'а синхронно.
type Listener func(State)

type Option func(*SessionPoller)

// WithInterval задаёт интервал между опросами
func WithInterval(interval time.Duration) Option {
	return func(p *SessionPoller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithClock подменяет часы (fake clock в тестах)
func WithClock(c clock.Clock) Option {
	return func(p *SessionPoller) {
		p.clock = c
	}
}

func WithListener(listener Listener) Option {
	return func(p *SessionPoller) {
		p.listener = listener
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(p *SessionPoller) {
		p.log = log
	}
}

func WithObserver(observer Observer) Option {
	return func(p *SessionPoller) {
		p.observer = observer
	}
}

// SessionPoller держит одну активную подписку на пару (session id, credential)
// и сходится к терминальному snapshot'у сессии.
//
// Ответ применяется только если его поколение совпадает с текущим; внутри
// поколения ответ, запрошенный до ReplaceSnapshot, отбрасывается по ревизии.
type SessionPoller struct {
	fetcher  Fetcher
	clock    clock.Clock
	interval time.Duration
	log      *logger.Logger
	listener Listener
	observer Observer

	mu         sync.Mutex
	sessionID  string
	credential string
	generation uint64
	revision   uint64
	seq        uint64
	snapshot   *entity.SessionEnvelope
	lastError  string
	terminal   bool
	polling    bool
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}

	notifyMu     sync.Mutex
	lastNotified uint64
}

// New создает poller в состоянии idle
func New(fetcher Fetcher, opts ...Option) *SessionPoller {
	p := &SessionPoller{
		fetcher:  fetcher,
		clock:    clock.RealClock{},
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Select переключает подписку. Пустая строка означает отсутствие значения:
// если id или credential пусты, poller переходит в idle.
// Повторный выбор активной пары ничего не делает.
func (p *SessionPoller) Select(sessionID, credential string) {
	sessionID = strings.TrimSpace(sessionID)
	credential = strings.TrimSpace(credential)
	if sessionID == "" || credential == "" {
		sessionID, credential = "", ""
	}

	p.mu.Lock()
	if p.closed || (sessionID == p.sessionID && credential == p.credential) {
		p.mu.Unlock()
		return
	}

	wasPolling := p.polling
	p.stopLocked()
	p.generation++
	p.revision = 0
	p.sessionID = sessionID
	p.credential = credential
	p.snapshot = nil
	p.lastError = ""
	p.terminal = false

	var (
		ctx  context.Context
		done chan struct{}
	)
	if sessionID != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		p.cancel = cancel
		p.done = done
		p.polling = true
	}
	generation := p.generation
	state := p.changedLocked()
	p.mu.Unlock()

	p.trackSubscription(wasPolling, state.Polling)
	p.notify(state)

	if sessionID == "" {
		p.debug("Session polling idle", "generation", generation)
		return
	}

	p.debug("Session polling started", "session_id", sessionID, "generation", generation)
	go p.run(ctx, generation, sessionID, credential, done)
}

// ReplaceSnapshot подставляет snapshot вне цикла опроса (например, ответ на вопрос).
// Терминальный snapshot останавливает опрос так же, как полученный polling'ом.
// Возвращает false, если активной подписки нет или updater вернул nil.
func (p *SessionPoller) ReplaceSnapshot(updater func(current *entity.SessionEnvelope) *entity.SessionEnvelope) bool {
	p.mu.Lock()
	if p.closed || p.sessionID == "" {
		p.mu.Unlock()
		return false
	}

	next := updater(p.snapshot)
	if next == nil {
		p.mu.Unlock()
		return false
	}

	p.revision++
	p.snapshot = next
	p.lastError = ""

	wasPolling := p.polling
	if next.IsComplete() {
		p.terminal = true
		p.stopLocked()
	}
	state := p.changedLocked()
	p.mu.Unlock()

	p.trackSubscription(wasPolling, state.Polling)
	p.notify(state)
	return true
}

// State возвращает текущее состояние подписки
func (p *SessionPoller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Close останавливает опрос и ждёт завершения цикла. Повторные вызовы безопасны.
func (p *SessionPoller) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	wasPolling := p.polling
	done := p.done
	p.stopLocked()
	p.generation++
	p.sessionID, p.credential = "", ""
	p.snapshot = nil
	p.lastError = ""
	p.closed = true
	p.mu.Unlock()

	p.trackSubscription(wasPolling, false)
	if done != nil {
		<-done
	}
}

// run — цикл одной подписки: запрос, пауза interval, запрос.
// Запросы последовательны, поэтому в полёте не больше одного, таймер тоже один.
func (p *SessionPoller) run(ctx context.Context, generation uint64, sessionID, credential string, done chan struct{}) {
	defer close(done)

	for {
		p.mu.Lock()
		revision := p.revision
		p.mu.Unlock()

		envelope, err := p.fetcher.FetchSession(ctx, sessionID, credential)
		if !p.apply(ctx, generation, revision, envelope, err) {
			return
		}

		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}

// apply применяет результат запроса и сообщает, нужно ли продолжать опрос
func (p *SessionPoller) apply(ctx context.Context, generation, revision uint64, envelope *entity.SessionEnvelope, err error) bool {
	p.mu.Lock()

	if ctx.Err() != nil || generation != p.generation {
		p.mu.Unlock()
		p.observe(FetchStale)
		return false
	}

	if revision != p.revision {
		// snapshot подменили, пока запрос был в полёте
		keepPolling := !p.terminal
		p.mu.Unlock()
		p.observe(FetchSuperseded)
		return keepPolling
	}

	wasPolling := p.polling
	result := FetchApplied
	if err != nil {
		result = FetchFailed
		p.lastError = err.Error()
	} else if envelope != nil {
		p.snapshot = envelope
		p.lastError = ""
		if envelope.IsComplete() {
			p.terminal = true
			p.stopLocked()
		}
	}

	keepPolling := !p.terminal
	sessionID := p.sessionID
	state := p.changedLocked()
	p.mu.Unlock()

	p.observe(result)
	p.trackSubscription(wasPolling, state.Polling)
	p.notify(state)

	if err != nil {
		p.warn("Session fetch failed, retrying", err, sessionID, generation)
	} else if !keepPolling {
		p.debug("Session reached terminal state, polling stopped", "session_id", sessionID, "generation", generation)
	}
	return keepPolling
}

// stopLocked отменяет запрос в полёте и таймер текущего цикла
func (p *SessionPoller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.done = nil
	p.polling = false
}

func (p *SessionPoller) changedLocked() State {
	p.seq++
	return p.stateLocked()
}

func (p *SessionPoller) stateLocked() State {
	return State{
		SessionID:  p.sessionID,
		Snapshot:   p.snapshot,
		Error:      p.lastError,
		Generation: p.generation,
		Polling:    p.polling,
		Terminal:   p.terminal,
		seq:        p.seq,
	}
}

// notify доставляет изменения listener'у строго по порядку, пропуская устаревшие
func (p *SessionPoller) notify(state State) {
	if p.listener == nil {
		return
	}

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	if state.seq <= p.lastNotified {
		return
	}
	p.lastNotified = state.seq
	p.listener(state)
}

func (p *SessionPoller) trackSubscription(wasPolling, isPolling bool) {
	if p.observer == nil || wasPolling == isPolling {
		return
	}
	if isPolling {
		p.observer.SubscriptionsChanged(1)
	} else {
		p.observer.SubscriptionsChanged(-1)
	}
}

func (p *SessionPoller) observe(result FetchResult) {
	if p.observer != nil {
		p.observer.FetchCompleted(result)
	}
}

func (p *SessionPoller) debug(msg string, args ...interface{}) {
	if p.log != nil {
		p.log.Debug(msg, args...)
	}
}

func (p *SessionPoller) warn(msg string, err error, sessionID string, generation uint64) {
	if p.log != nil {
		p.log.Warn(msg, "session_id", sessionID, "generation", generation, "error", err.Error())
	}
}

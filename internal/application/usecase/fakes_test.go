package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

func strPtr(s string) *string {
	return &s
}

func terminalEnvelope(id string) *entity.SessionEnvelope {
	return &entity.SessionEnvelope{
		Session: entity.Session{
			SessionID:     id,
			ScenarioName:  "TV_AUTO_SYNC",
			FinishedAt:    strPtr("2025-01-10T10:04:00Z"),
			OverallStatus: valueobject.OverallFail,
			AnalyzerReady: true,
			TVBrandUser:   strPtr("LG"),
			TVBrandLog:    strPtr("Samsung"),
		},
	}
}

func runningEnvelope(id string) *entity.SessionEnvelope {
	return &entity.SessionEnvelope{
		Session: entity.Session{
			SessionID:     id,
			ScenarioName:  "TV_AUTO_SYNC",
			OverallStatus: valueobject.OverallAwaitingInput,
		},
	}
}

type mockGateway struct {
	mu         sync.Mutex
	sessions   map[string]*entity.SessionEnvelope
	fetchErr   error
	fetchCalls int
	answers    []string
	answerResp *entity.SessionEnvelope
	runCmd     *port.RunScenarioCommand
}

func newMockGateway(envelopes ...*entity.SessionEnvelope) *mockGateway {
	g := &mockGateway{sessions: make(map[string]*entity.SessionEnvelope)}
	for _, e := range envelopes {
		g.sessions[e.Session.SessionID] = e
	}
	return g
}

func (g *mockGateway) FetchSession(_ context.Context, sessionID, _ string) (*entity.SessionEnvelope, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fetchCalls++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	envelope, ok := g.sessions[sessionID]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	return envelope.Clone(), nil
}

func (g *mockGateway) SubmitAnswer(_ context.Context, _, _, answer string) (*entity.SessionEnvelope, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.answers = append(g.answers, answer)
	return g.answerResp, nil
}

func (g *mockGateway) RunScenario(_ context.Context, _ string, cmd port.RunScenarioCommand) (*port.RunScenarioResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.runCmd = &cmd
	return &port.RunScenarioResult{SessionID: "QS_NEW", ScenarioName: cmd.ScenarioName}, nil
}

type mockCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.items[key]
	if !ok {
		return port.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mockCache) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *mockCache) Close() error {
	return nil
}

type mockStorage struct {
	mu      sync.Mutex
	keys    []string
	objects []port.SnapshotObject
	err     error
}

func (s *mockStorage) PutSnapshot(_ context.Context, object port.SnapshotObject) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, object.Key)
	s.objects = append(s.objects, object)
	return "https://storage.example.com/" + object.Key, nil
}

type mockMetadata struct {
	mu      sync.Mutex
	records []port.SnapshotMetadata
}

func (m *mockMetadata) Put(_ context.Context, record port.SnapshotMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockMetadata) ListBySession(_ context.Context, query port.SnapshotListQuery) (port.SnapshotListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var page port.SnapshotListPage
	for _, r := range m.records {
		if r.SessionID == query.SessionID {
			page.Items = append(page.Items, r)
		}
	}
	return page, nil
}

type mockEvents struct {
	mu     sync.Mutex
	events []port.VerdictFinalizedEvent
}

func (e *mockEvents) PublishVerdictFinalized(_ context.Context, event port.VerdictFinalizedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *mockEvents) Close() error {
	return nil
}

type mockMetrics struct {
	mu       sync.Mutex
	verdicts []entity.Verdict
}

func (m *mockMetrics) PublishVerdict(_ context.Context, _ string, verdict entity.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, verdict)
	return errors.New("cloudwatch unavailable")
}

func (m *mockMetrics) Flush(context.Context) error {
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	verdicts []*dto.VerdictRecordDTO
}

func (n *mockNotifier) BroadcastVerdict(verdict *dto.VerdictRecordDTO) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verdicts = append(n.verdicts, verdict)
}

func (n *mockNotifier) ClientCount() int {
	return 0
}

// lookupFailingRepository не может прочитать историю (БД недоступна на чтение)
type lookupFailingRepository struct {
	repository.VerdictRepository
}

func (r *lookupFailingRepository) FindBySessionID(context.Context, string) (*entity.VerdictRecord, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
}

type recordingLogPublisher struct {
	mu      sync.Mutex
	entries []port.LogEntry
}

func (p *recordingLogPublisher) Publish(_ context.Context, entry port.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return nil
}

func (p *recordingLogPublisher) PublishBatch(ctx context.Context, entries []port.LogEntry) error {
	for _, entry := range entries {
		_ = p.Publish(ctx, entry)
	}
	return nil
}

func (p *recordingLogPublisher) Flush(context.Context) error {
	return nil
}

func (p *recordingLogPublisher) find(message string) (port.LogEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range p.entries {
		if entry.Message == message {
			return entry, true
		}
	}
	return port.LogEntry{}, false
}

// flakyRepository отказывает на первом Save
type flakyRepository struct {
	repository.VerdictRepository
	failures int
}

func (r *flakyRepository) Save(ctx context.Context, record *entity.VerdictRecord) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.VerdictRepository.Save(ctx, record)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/quickset-dashboard/internal/application/dto"
	"github.com/dreschagin/quickset-dashboard/internal/application/usecase"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/backend"
	wsInfra "github.com/dreschagin/quickset-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/internal/verdictdigest"
	"github.com/dreschagin/quickset-dashboard/pkg/config"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

const (
	testToken  = "test-token"
	testAPIKey = "backend-key"
	testOrigin = "http://localhost:8080"
)

// fakeBackend имитирует QuickSet backend
type fakeBackend struct {
	mu       sync.Mutex
	sessions map[string]*entity.SessionEnvelope
	answers  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sessions: make(map[string]*entity.SessionEnvelope)}
}

func (b *fakeBackend) put(envelope *entity.SessionEnvelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[envelope.Session.SessionID] = envelope
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/quickset/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(backend.APIKeyHeader) != testAPIKey {
			http.Error(w, `{"detail":"bad key"}`, http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		envelope, ok := b.sessions[r.PathValue("id")]
		b.mu.Unlock()
		if !ok {
			http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(envelope)
	})
	mux.HandleFunc("POST /api/quickset/sessions/{id}/answer", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answer string `json:"answer"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		defer b.mu.Unlock()
		envelope, ok := b.sessions[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
			return
		}
		b.answers = append(b.answers, body.Answer)
		envelope.Timeline = append(envelope.Timeline, entity.TimelineEvent{
			Name:       "question_tv_brand",
			Status:     "PASS",
			UserAnswer: body.Answer,
		})
		_ = json.NewEncoder(w).Encode(envelope)
	})
	mux.HandleFunc("POST /api/quickset/scenarios/run", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ScenarioName string `json:"scenario_name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"session_id":    "QS_NEW_1",
			"scenario_name": body.ScenarioName,
		})
	})
	return mux
}

func finishedSession(id string) *entity.SessionEnvelope {
	finished := "2026-01-01T10:05:00Z"
	brand := "Samsung"
	details, _ := json.Marshal(map[string]interface{}{
		"brand_status":  "OK",
		"volume_status": "OK",
		"osd_status":    "FAIL",
	})
	return &entity.SessionEnvelope{
		Session: entity.Session{
			SessionID:     id,
			ScenarioName:  "TV_AUTO_SYNC",
			FinishedAt:    &finished,
			OverallStatus: valueobject.OverallFail,
			AnalyzerReady: true,
			TVBrandUser:   &brand,
			TVBrandLog:    &brand,
		},
		Timeline: []entity.TimelineEvent{
			{Name: entity.AnalysisSummaryStep, Status: "INFO", Details: details},
		},
	}
}

func runningSession(id string) *entity.SessionEnvelope {
	return &entity.SessionEnvelope{
		Session: entity.Session{
			SessionID:     id,
			ScenarioName:  "TV_AUTO_SYNC",
			OverallStatus: valueobject.OverallAwaitingInput,
		},
	}
}

type testEnv struct {
	server  *httptest.Server
	backend *fakeBackend
	repo    *memory.VerdictRepository
}

func newTestServer(t *testing.T, readiness map[string]ReadinessCheck) *testEnv {
	t.Helper()

	log := logger.New("error")
	fake := newFakeBackend()
	backendServer := httptest.NewServer(fake.handler())
	t.Cleanup(backendServer.Close)

	client, err := backend.NewQuickSetClient(backendServer.URL+"/api", 2*time.Second)
	if err != nil {
		t.Fatalf("failed to build backend client: %v", err)
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)
	reconciler := service.NewVerdictReconciler()
	repo := memory.NewVerdictRepository()

	hub := wsInfra.NewHub(wsInfra.HubConfig{
		Fetcher:           client,
		Reconciler:        reconciler,
		Observer:          collectors,
		ClientsGauge:      collectors.WebSocketClients,
		PollInterval:      20 * time.Millisecond,
		DefaultCredential: testAPIKey,
	}, log)

	finalizer := usecase.NewFinalizeSessionUseCase(usecase.FinalizeSessionDeps{
		Repository: repo,
		Metrics:    collectors,
		Notifier:   hub,
	}, reconciler, log)
	submitAnswerUC := usecase.NewSubmitAnswerUseCase(client, reconciler, finalizer, log)

	hub.SetFinalizer(finalizer)
	hub.SetAnswerSubmitter(submitAnswerUC)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	authConfig := middleware.AuthConfig{Enabled: true, BearerToken: testToken}

	sessionAPIHandler := handler.NewSessionAPIHandler(
		usecase.NewGetSessionVerdictUseCase(client, reconciler, nil, finalizer, log),
		submitAnswerUC,
		usecase.NewExportSnapshotUseCase(client, nil),
		usecase.NewListSnapshotsUseCase(nil),
		usecase.NewRunScenarioUseCase(client, log),
		testAPIKey,
		log,
	)

	router := NewRouter(
		sessionAPIHandler,
		handler.NewVerdictAPIHandler(usecase.NewListVerdictsUseCase(repo), log),
		handler.NewWebSocketHandler(hub, []string{testOrigin}, authConfig, log),
		handler.NewAuthAPIHandler(authConfig, collectors.AuthFailures, log),
		verdictdigest.NewHandler(verdictdigest.NewRunner(verdictdigest.NewService(repo, 50), log, time.Minute)),
		collectors,
		registry,
		readiness,
		config.SecurityConfig{
			AllowedOrigins: []string{testOrigin},
			AuthEnabled:    true,
			AuthToken:      testToken,
		},
		config.RateLimitConfig{RPS: 100, Burst: 100},
		log,
	)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	return &testEnv{server: server, backend: fake, repo: repo}
}

func TestE2EHealthEndpoints(t *testing.T) {
	env := newTestServer(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestE2EReadinessFailure(t *testing.T) {
	env := newTestServer(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	resp, err := http.Get(env.server.URL + "/readyz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var payload struct {
		Ready  bool              `json:"ready"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode readiness: %v", err)
	}
	if payload.Ready || payload.Checks["postgres"] != "ok" || payload.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected readiness payload: %+v", payload)
	}
}

func TestE2EAuth(t *testing.T) {
	env := newTestServer(t, nil)
	client := env.server.Client()

	resp := doRequest(t, client, http.MethodGet, env.server.URL+"/api/v1/verdicts", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	wrongResp := doRequest(t, client, http.MethodPost, env.server.URL+"/api/v1/auth/login", bytes.NewBufferString(`{"token":"guess"}`), nil)
	wrongResp.Body.Close()
	if wrongResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", wrongResp.StatusCode)
	}

	loginBody := bytes.NewBufferString(`{"token":"` + testToken + `"}`)
	loginResp := doRequest(t, client, http.MethodPost, env.server.URL+"/api/v1/auth/login", loginBody, nil)
	loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", loginResp.StatusCode)
	}

	var authCookie *http.Cookie
	for _, c := range loginResp.Cookies() {
		if c.Name == middleware.AuthCookieName {
			authCookie = c
		}
	}
	if authCookie == nil {
		t.Fatalf("expected %s cookie", middleware.AuthCookieName)
	}

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/verdicts", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.AddCookie(authCookie)
	cookieResp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	cookieResp.Body.Close()
	if cookieResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with cookie, got %d", cookieResp.StatusCode)
	}
}

func TestE2ESessionVerdictAndHistory(t *testing.T) {
	env := newTestServer(t, nil)
	env.backend.put(finishedSession("QS_DONE_1"))
	client := env.server.Client()
	auth := map[string]string{"Authorization": "Bearer " + testToken}

	resp := doRequest(t, client, http.MethodGet, env.server.URL+"/api/v1/sessions/QS_DONE_1", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var result dto.SessionVerdictDTO
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	resp.Body.Close()

	if !result.Terminal {
		t.Fatalf("expected terminal session")
	}
	if result.Verdict == nil || result.Verdict.Brand != valueobject.StatusOK || result.Verdict.OSD != valueobject.StatusFail {
		t.Fatalf("unexpected verdict: %+v", result.Verdict)
	}

	historyResp := doRequest(t, client, http.MethodGet, env.server.URL+"/api/v1/verdicts?limit=5", nil, auth)
	var history struct {
		Items []dto.VerdictRecordDTO `json:"items"`
		Count int                    `json:"count"`
	}
	if err := json.NewDecoder(historyResp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	historyResp.Body.Close()

	if history.Count != 1 || history.Items[0].SessionID != "QS_DONE_1" {
		t.Fatalf("unexpected history: %+v", history)
	}

	digestResp := doRequest(t, client, http.MethodPost, env.server.URL+"/api/v1/verdicts/summary/run", nil, auth)
	if digestResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from digest run, got %d: %s", digestResp.StatusCode, readBody(t, digestResp))
	}
	var digest verdictdigest.CycleSummary
	if err := json.NewDecoder(digestResp.Body).Decode(&digest); err != nil {
		t.Fatalf("decode digest: %v", err)
	}
	digestResp.Body.Close()

	if digest.Sampled != 1 || len(digest.Scenarios) != 1 || digest.Scenarios[0].Scenario != "TV_AUTO_SYNC" {
		t.Fatalf("unexpected digest: %+v", digest)
	}

	metricsResp := doRequest(t, client, http.MethodGet, env.server.URL+"/metrics", nil, nil)
	body := readBody(t, metricsResp)
	if !strings.Contains(body, `quickset_verdicts_finalized_total{conflict="false",scenario="TV_AUTO_SYNC"} 1`) {
		t.Fatalf("expected finalized verdict metric, got:\n%s", body)
	}
}

func TestE2EBackendErrorsMapToStatus(t *testing.T) {
	env := newTestServer(t, nil)
	env.backend.put(runningSession("QS_RUN_1"))
	client := env.server.Client()
	auth := map[string]string{"Authorization": "Bearer " + testToken}

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		headers map[string]string
		want    int
	}{
		{name: "unknown session", method: http.MethodGet, path: "/api/v1/sessions/QS_MISSING", want: http.StatusNotFound},
		{name: "rejected api key", method: http.MethodGet, path: "/api/v1/sessions/QS_RUN_1", headers: map[string]string{handler.APIKeyHeader: "wrong"}, want: http.StatusUnauthorized},
		{name: "empty answer", method: http.MethodPost, path: "/api/v1/sessions/QS_RUN_1/answer", body: `{"answer":" "}`, want: http.StatusBadRequest},
		{name: "snapshot archive disabled", method: http.MethodPost, path: "/api/v1/sessions/QS_RUN_1/snapshot", want: http.StatusServiceUnavailable},
		{name: "invalid scenario", method: http.MethodPost, path: "/api/v1/scenarios/run", body: `{"scenario_name":"UNKNOWN","tester_id":"qa","stb_ip":"10.0.0.2"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			for k, v := range auth {
				headers[k] = v
			}
			for k, v := range tt.headers {
				headers[k] = v
			}

			var body *bytes.Buffer
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			resp := doRequest(t, client, tt.method, env.server.URL+tt.path, body, headers)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestE2ERunScenario(t *testing.T) {
	env := newTestServer(t, nil)
	client := env.server.Client()

	body := bytes.NewBufferString(`{"scenario_name":"tv_auto_sync","tester_id":"qa-7","stb_ip":"192.168.0.50"}`)
	resp := doRequest(t, client, http.MethodPost, env.server.URL+"/api/v1/scenarios/run", body, map[string]string{
		"Authorization": "Bearer " + testToken,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode run result: %v", err)
	}
	resp.Body.Close()

	if result["session_id"] != "QS_NEW_1" || result["scenario_name"] != "TV_AUTO_SYNC" {
		t.Fatalf("unexpected run result: %v", result)
	}
}

func TestE2EWebSocketSessionStream(t *testing.T) {
	env := newTestServer(t, nil)
	env.backend.put(runningSession("QS_WS_1"))

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + testToken

	if _, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}}); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsInfra.ClientMessage{Type: wsInfra.ClientMessageSelect, SessionID: "QS_WS_1"}); err != nil {
		t.Fatalf("write select: %v", err)
	}

	update := readSessionUpdate(t, conn, func(u dto.SessionUpdateDTO) bool { return u.Session != nil })
	if update.SessionID != "QS_WS_1" || !update.Polling {
		t.Fatalf("unexpected first update: %+v", update)
	}

	// Сессия завершается на backend'е: poller должен остановиться, вердикт разослан
	env.backend.put(finishedSession("QS_WS_1"))

	final := readSessionUpdate(t, conn, func(u dto.SessionUpdateDTO) bool {
		return u.Session != nil && u.Session.IsComplete()
	})
	if final.Polling {
		t.Fatalf("polling must stop on terminal snapshot")
	}
	if final.Verdict == nil || final.Verdict.OSD != valueobject.StatusFail {
		t.Fatalf("unexpected verdict: %+v", final.Verdict)
	}

	verdict := readMessage(t, conn, wsInfra.MessageTypeVerdict)
	var record dto.VerdictRecordDTO
	if err := json.Unmarshal(verdict.Data, &record); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if record.SessionID != "QS_WS_1" {
		t.Fatalf("unexpected broadcast verdict: %+v", record)
	}
}

func TestE2EWebSocketPreselectsSessionFromQuery(t *testing.T) {
	env := newTestServer(t, nil)
	env.backend.put(finishedSession("QS_WS_2"))

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + testToken + "&session_id=QS_WS_2"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin + "/"}})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	update := readSessionUpdate(t, conn, func(u dto.SessionUpdateDTO) bool { return u.Session != nil })
	if update.SessionID != "QS_WS_2" || update.Polling || !update.Session.IsComplete() {
		t.Fatalf("unexpected update: %+v", update)
	}
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn, messageType string) wsEnvelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	for {
		var msg wsEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read %s message: %v", messageType, err)
		}
		if msg.Type == messageType {
			return msg
		}
	}
}

func readSessionUpdate(t *testing.T, conn *websocket.Conn, match func(dto.SessionUpdateDTO) bool) dto.SessionUpdateDTO {
	t.Helper()
	for {
		msg := readMessage(t, conn, wsInfra.MessageTypeSession)
		var update dto.SessionUpdateDTO
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			t.Fatalf("decode session update: %v", err)
		}
		if match(update) {
			return update
		}
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(raw)
}

func doRequest(t *testing.T, client *http.Client, method, url string, body *bytes.Buffer, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = body
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

func TestGetSessionVerdictUseCase_RunningSession(t *testing.T) {
	gateway := newMockGateway(runningEnvelope("QS_RUN"))
	cache := newMockCache()
	uc := NewGetSessionVerdictUseCase(gateway, service.NewVerdictReconciler(), cache, nil, logger.New("error"))

	res, err := uc.Execute(context.Background(), "QS_RUN", "key")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Terminal {
		t.Fatalf("running session must not be terminal")
	}
	if res.Verdict.Brand != valueobject.StatusNotEvaluated {
		t.Fatalf("expected NOT_EVALUATED brand, got %s", res.Verdict.Brand)
	}
	if res.Verdict.Labels.Brand != "NOT EVALUATED YET" {
		t.Fatalf("unexpected label %q", res.Verdict.Labels.Brand)
	}
	if len(cache.items) != 0 {
		t.Fatalf("running session must not be cached")
	}

	if _, err := uc.Execute(context.Background(), "QS_RUN", "key"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gateway.fetchCalls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", gateway.fetchCalls)
	}
}

func TestGetSessionVerdictUseCase_TerminalSessionIsCachedAndFinalized(t *testing.T) {
	gateway := newMockGateway(terminalEnvelope("QS_DONE"))
	cache := newMockCache()
	repo := memory.NewVerdictRepository()
	log := logger.New("error")
	reconciler := service.NewVerdictReconciler()
	finalizer := NewFinalizeSessionUseCase(FinalizeSessionDeps{Repository: repo}, reconciler, log)
	uc := NewGetSessionVerdictUseCase(gateway, reconciler, cache, finalizer, log)

	first, err := uc.Execute(context.Background(), "QS_DONE", "key")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !first.Terminal || first.Cached {
		t.Fatalf("expected fresh terminal result, got terminal=%v cached=%v", first.Terminal, first.Cached)
	}
	if first.Verdict.Brand != valueobject.StatusIncompatibility || !first.Verdict.BrandMismatch {
		t.Fatalf("expected brand mismatch, got %+v", first.Verdict.Verdict)
	}

	second, err := uc.Execute(context.Background(), "QS_DONE", "key")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !second.Cached {
		t.Fatalf("expected cached result")
	}
	if gateway.fetchCalls != 1 {
		t.Fatalf("expected single backend call, got %d", gateway.fetchCalls)
	}
	if second.Verdict.Verdict != first.Verdict.Verdict {
		t.Fatalf("cached verdict differs: %+v vs %+v", second.Verdict.Verdict, first.Verdict.Verdict)
	}

	if _, err := repo.FindBySessionID(context.Background(), "QS_DONE"); err != nil {
		t.Fatalf("expected finalized verdict, got %v", err)
	}
}

func TestGetSessionVerdictUseCase_CacheIsScopedToCredential(t *testing.T) {
	gateway := newMockGateway(terminalEnvelope("QS_DONE"))
	cache := newMockCache()
	uc := NewGetSessionVerdictUseCase(gateway, service.NewVerdictReconciler(), cache, nil, logger.New("error"))

	if _, err := uc.Execute(context.Background(), "QS_DONE", "tester-key"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, ok := cache.items[port.SessionCacheKey("QS_DONE", "tester-key")]; !ok {
		t.Fatalf("terminal envelope must be cached under the accepted credential")
	}

	// backend отклоняет чужой ключ: кеш не должен его обойти
	rejected := errors.New("quickset backend rejected api key")
	gateway.fetchErr = rejected
	for _, credential := range []string{"other-key", ""} {
		res, err := uc.Execute(context.Background(), "QS_DONE", credential)
		if !errors.Is(err, rejected) {
			t.Fatalf("credential %q: expected backend rejection, got res=%+v err=%v", credential, res, err)
		}
	}
	if gateway.fetchCalls != 3 {
		t.Fatalf("expected every foreign credential to reach backend, got %d calls", gateway.fetchCalls)
	}

	cached, err := uc.Execute(context.Background(), "QS_DONE", "tester-key")
	if err != nil || !cached.Cached {
		t.Fatalf("same credential must hit cache, got cached=%v err=%v", cached != nil && cached.Cached, err)
	}
}

func TestSessionCacheKeyDoesNotExposeCredential(t *testing.T) {
	key := port.SessionCacheKey("QS_DONE", "secret-api-key")
	if strings.Contains(key, "secret-api-key") || !strings.HasSuffix(key, ":QS_DONE") {
		t.Fatalf("unexpected cache key %q", key)
	}
	if key == port.SessionCacheKey("QS_DONE", "other-key") {
		t.Fatalf("different credentials must produce different keys")
	}
}

func TestGetSessionVerdictUseCase_Errors(t *testing.T) {
	gateway := newMockGateway()
	uc := NewGetSessionVerdictUseCase(gateway, service.NewVerdictReconciler(), nil, nil, logger.New("error"))

	if _, err := uc.Execute(context.Background(), "bad id/../", "key"); !errors.Is(err, ErrInvalidSessionID) {
		t.Fatalf("expected ErrInvalidSessionID, got %v", err)
	}

	if _, err := uc.Execute(context.Background(), "QS_404", "key"); !errors.Is(err, entity.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

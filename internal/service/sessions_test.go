package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/cache"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.uber.org/zap"
)

type mockRevoker struct {
	uid string
	err error
}

func (m *mockRevoker) SignOut(_ context.Context, uid string) error {
	m.uid = uid
	return m.err
}

func newTestSessions(store *memstore.Store, revoker *mockRevoker) *service.Sessions {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	deps := &service.ControllerDeps{
		Generator:      &mockGenerator{},
		Ledger:         store,
		History:        service.NewHistory(store, metrics, logger),
		Exporter:       &mockExporter{},
		UpgradeCredits: 10,
		Metrics:        metrics,
		Logger:         logger,
	}
	return service.NewSessions(cache.New[*service.Controller](time.Hour), deps, revoker)
}

func TestSessions_OpenCreatesProfileOnce(t *testing.T) {
	store := memstore.New()
	sessions := newTestSessions(store, nil)
	id := &domain.Identity{UID: "u1", Email: "ana@example.com", DisplayName: "Ana"}

	ctrl, err := sessions.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := ctrl.Snapshot()
	if s.Profile == nil || s.Profile.Credits != domain.InitialCredits || s.Profile.Plan != domain.PlanFree {
		t.Fatalf("expected a starter profile, got %+v", s.Profile)
	}
	if s.Step != domain.StepIdle {
		t.Errorf("expected idle, got %s", s.Step)
	}

	if _, err := ctrl.Generate(context.Background(), "NDA"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	again, err := sessions.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again != ctrl {
		t.Error("expected the same controller on reopen")
	}
	if got := again.Snapshot().Profile.Credits; got != domain.InitialCredits-1 {
		t.Errorf("reopening must not reset credits, got %d", got)
	}
}

func TestSessions_GetRequiresOpen(t *testing.T) {
	sessions := newTestSessions(memstore.New(), nil)

	_, err := sessions.Get("u1")

	var authRequired *domain.ErrAuthRequired
	if !errors.As(err, &authRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestSessions_CloseDropsStateAndRevokes(t *testing.T) {
	store := memstore.New()
	revoker := &mockRevoker{}
	sessions := newTestSessions(store, revoker)

	if _, err := sessions.Open(context.Background(), &domain.Identity{UID: "u1"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sessions.Close(context.Background(), "u1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	if revoker.uid != "u1" {
		t.Errorf("expected tokens of u1 revoked, got %q", revoker.uid)
	}
	if _, err := sessions.Get("u1"); err == nil {
		t.Error("expected the session to be gone")
	}
}

func TestSessions_CloseClearsStateEvenWhenRevokeFails(t *testing.T) {
	revoker := &mockRevoker{err: errors.New("provider down")}
	sessions := newTestSessions(memstore.New(), revoker)
	sessions.Open(context.Background(), &domain.Identity{UID: "u1"})

	if err := sessions.Close(context.Background(), "u1"); err == nil {
		t.Fatal("expected the revoke error")
	}
	if _, err := sessions.Get("u1"); err == nil {
		t.Error("expected the session to be gone")
	}
}

func TestSessions_OpenFailsWhenStoreDown(t *testing.T) {
	store := memstore.New()
	store.FailOn(memstore.OpInitProfile, &domain.ErrExternalService{Service: "firestore", Err: errors.New("down")})
	sessions := newTestSessions(store, nil)

	_, err := sessions.Open(context.Background(), &domain.Identity{UID: "u1"})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

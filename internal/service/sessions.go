package service

import (
	"context"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/cache"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// tokenRevoker ends the user's sessions at the identity provider.
type tokenRevoker interface {
	SignOut(ctx context.Context, uid string) error
}

// Sessions holds one live Controller per authenticated uid. Idle
// controllers expire with the cache TTL.
type Sessions struct {
	controllers *cache.InMemory[*Controller]
	deps        *ControllerDeps
	ledger      port.CreditLedger
	revoker     tokenRevoker
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewSessions creates the registry. revoker may be nil.
func NewSessions(controllers *cache.InMemory[*Controller], deps *ControllerDeps, revoker tokenRevoker) *Sessions {
	return &Sessions{
		controllers: controllers,
		deps:        deps,
		ledger:      deps.Ledger,
		revoker:     revoker,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// Open initializes the profile on first authentication and returns the
// user's controller, creating it if needed, with a fresh profile.
func (s *Sessions) Open(ctx context.Context, id *domain.Identity) (*Controller, error) {
	ctx, span := tracer.Start(ctx, "Sessions.Open")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", id.UID))

	profile, created, err := s.ledger.InitializeProfile(ctx, id)
	if err != nil {
		s.logger.Error("profile initialization failed", zap.String("uid", id.UID), zap.Error(err))
		return nil, err
	}

	ctrl, existed := s.controllers.GetOrSet(id.UID, func() *Controller {
		return NewController(id.UID, s.deps)
	})
	if existed {
		s.metrics.IncrCacheHit("session")
	} else {
		s.metrics.IncrCacheMiss("session")
		s.logger.Info("session opened", zap.String("uid", id.UID), zap.Bool("new_profile", created))
	}
	s.metrics.SetActiveSessions(s.controllers.Len())

	ctrl.SetProfile(profile)
	return ctrl, nil
}

// Get returns the live controller of uid.
func (s *Sessions) Get(uid string) (*Controller, error) {
	ctrl, ok := s.controllers.Touch(uid)
	if !ok {
		s.metrics.IncrCacheMiss("session")
		return nil, &domain.ErrAuthRequired{Action: "use the workspace"}
	}
	s.metrics.IncrCacheHit("session")
	return ctrl, nil
}

// Close drops the controller of uid and revokes the user's tokens. The
// in-memory state is gone even when revocation fails.
func (s *Sessions) Close(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Sessions.Close")
	defer span.End()

	s.controllers.Delete(uid)
	s.metrics.SetActiveSessions(s.controllers.Len())
	s.logger.Info("session closed", zap.String("uid", uid))

	if s.revoker == nil {
		return nil
	}
	return s.revoker.SignOut(ctx, uid)
}

package service

import (
	"context"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// History is the history client used by the controller. Listing never
// fails: a read error yields an empty list.
type History struct {
	store   port.HistoryStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHistory creates a History over store.
func NewHistory(store port.HistoryStore, metrics *observability.Metrics, logger *zap.Logger) *History {
	return &History{store: store, metrics: metrics, logger: logger}
}

// List returns the user's documents newest first, or an empty list when the
// store cannot be read.
func (h *History) List(ctx context.Context, uid string) []domain.GeneratedDocument {
	ctx, span := tracer.Start(ctx, "History.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	docs, err := h.store.List(ctx, uid)
	if err != nil {
		h.metrics.IncrHistoryFailure()
		h.logger.Warn("history list failed, returning empty list",
			zap.String("uid", uid),
			zap.Error(err),
		)
		return []domain.GeneratedDocument{}
	}
	if docs == nil {
		docs = []domain.GeneratedDocument{}
	}
	return docs
}

// Get returns one stored document.
func (h *History) Get(ctx context.Context, uid, id string) (*domain.GeneratedDocument, error) {
	return h.store.Get(ctx, uid, id)
}

// Save stores doc and returns the assigned id.
func (h *History) Save(ctx context.Context, uid string, doc *domain.GeneratedDocument) (string, error) {
	id, err := h.store.Save(ctx, uid, doc)
	if err != nil {
		return "", &domain.ErrPersistence{Operation: "save", Err: err}
	}
	return id, nil
}

// Update rewrites a stored document.
func (h *History) Update(ctx context.Context, uid string, doc *domain.GeneratedDocument) error {
	if err := h.store.Update(ctx, uid, doc); err != nil {
		return persistenceError("update", err)
	}
	return nil
}

// Delete removes one document.
func (h *History) Delete(ctx context.Context, uid, id string) error {
	ctx, span := tracer.Start(ctx, "History.Delete")
	defer span.End()

	if err := h.store.Delete(ctx, uid, id); err != nil {
		return persistenceError("delete", err)
	}
	h.logger.Info("history document deleted", zap.String("uid", uid), zap.String("document_id", id))
	return nil
}

// DeleteAll removes every document of the user, atomically.
func (h *History) DeleteAll(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "History.DeleteAll")
	defer span.End()

	if err := h.store.DeleteAll(ctx, uid); err != nil {
		return persistenceError("delete all", err)
	}
	return nil
}

// persistenceError wraps store failures, leaving not-found and validation
// errors as they are so they map onto 404 and 400.
func persistenceError(op string, err error) error {
	switch err.(type) {
	case *domain.ErrNotFound, *domain.ErrValidation:
		return err
	}
	return &domain.ErrPersistence{Operation: op, Err: err}
}

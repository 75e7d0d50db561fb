package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"

	"cloud.google.com/go/firestore"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// maxTransactionWrites is Firestore's per-transaction write limit.
const maxTransactionWrites = 500

// History stores generated documents under users/{uid}/documents.
type History struct {
	client *firestore.Client
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewHistory creates a History. Reads are retried with cfg; writes run once.
func NewHistory(client *firestore.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *History {
	return &History{client: client, cb: cb, cfg: cfg, logger: logger, now: time.Now}
}

func (h *History) documents(uid string) *firestore.CollectionRef {
	return h.client.Collection(usersCollection).Doc(uid).Collection(documentsCollection)
}

// List returns the user's documents ordered by createdAtTimestamp, newest first.
func (h *History) List(ctx context.Context, uid string) ([]domain.GeneratedDocument, error) {
	ctx, span := tracer.Start(ctx, "History.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	var docs []domain.GeneratedDocument
	err := resilience.Call(ctx, h.cb, serviceName, h.cfg, func() error {
		docs = docs[:0]
		iter := h.documents(uid).OrderBy("createdAtTimestamp", firestore.Desc).Documents(ctx)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return err
			}
			var d domain.GeneratedDocument
			if err := snap.DataTo(&d); err != nil {
				h.logger.Warn("skipping undecodable document",
					zap.String("uid", uid),
					zap.String("document_id", snap.Ref.ID),
					zap.Error(err),
				)
				continue
			}
			d.ID = snap.Ref.ID
			docs = append(docs, d)
		}
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.GeneratedDocument{}
	}
	return docs, nil
}

// Get reads one document.
func (h *History) Get(ctx context.Context, uid, id string) (*domain.GeneratedDocument, error) {
	ctx, span := tracer.Start(ctx, "History.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid), attribute.String("document.id", id))

	var doc domain.GeneratedDocument
	err := resilience.Call(ctx, h.cb, serviceName, h.cfg, func() error {
		snap, err := h.documents(uid).Doc(id).Get(ctx)
		if err != nil {
			return notFoundAsDomain(err, "document", id)
		}
		if err := snap.DataTo(&doc); err != nil {
			return resilience.Permanent(fmt.Errorf("decode document %s: %w", id, err))
		}
		doc.ID = snap.Ref.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save creates a document with a store-assigned id and returns the id.
func (h *History) Save(ctx context.Context, uid string, doc *domain.GeneratedDocument) (string, error) {
	ctx, span := tracer.Start(ctx, "History.Save")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	ref := h.documents(uid).NewDoc()
	record := *doc
	record.ID = ""
	record.CreatedAtTimestamp = h.now().UTC()

	err := resilience.Call(ctx, h.cb, serviceName, resilience.NoRetry, func() error {
		_, err := ref.Create(ctx, &record)
		return err
	})
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("document.id", ref.ID))
	return ref.ID, nil
}

// Update rewrites the editable fields of an existing document.
func (h *History) Update(ctx context.Context, uid string, doc *domain.GeneratedDocument) error {
	ctx, span := tracer.Start(ctx, "History.Update")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid), attribute.String("document.id", doc.ID))

	return resilience.Call(ctx, h.cb, serviceName, resilience.NoRetry, func() error {
		_, err := h.documents(uid).Doc(doc.ID).Update(ctx, []firestore.Update{
			{Path: "title", Value: doc.Title},
			{Path: "htmlContent", Value: doc.HTMLContent},
			{Path: "createdDate", Value: doc.CreatedDate},
		})
		return notFoundAsDomain(err, "document", doc.ID)
	})
}

// Delete removes one document.
func (h *History) Delete(ctx context.Context, uid, id string) error {
	ctx, span := tracer.Start(ctx, "History.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid), attribute.String("document.id", id))

	return resilience.Call(ctx, h.cb, serviceName, resilience.NoRetry, func() error {
		_, err := h.documents(uid).Doc(id).Delete(ctx)
		return err
	})
}

// DeleteAll removes every document of the user in a single transaction, so
// either all of them go or none do.
func (h *History) DeleteAll(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "History.DeleteAll")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	coll := h.documents(uid)
	var removed int
	err := resilience.Call(ctx, h.cb, serviceName, resilience.NoRetry, func() error {
		return h.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			refs, err := tx.DocumentRefs(coll).GetAll()
			if err != nil {
				return err
			}
			if len(refs) > maxTransactionWrites {
				return resilience.Permanent(&domain.ErrValidation{
					Field:   "documents",
					Message: fmt.Sprintf("%d documents exceed the %d allowed in one atomic delete", len(refs), maxTransactionWrites),
				})
			}
			for _, ref := range refs {
				if err := tx.Delete(ref); err != nil {
					return err
				}
			}
			removed = len(refs)
			return nil
		})
	})
	if err != nil {
		return err
	}

	h.logger.Info("history cleared", zap.String("uid", uid), zap.Int("documents", removed))
	return nil
}

// Package firestoredb implements the credit ledger and history store on
// Cloud Firestore: profiles at users/{uid}, documents at
// users/{uid}/documents/{id}.
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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("firestoredb")

const (
	usersCollection     = "users"
	documentsCollection = "documents"
	serviceName         = "firestore"
)

// Ledger stores profiles and credit balances.
type Ledger struct {
	client *firestore.Client
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a Ledger. Reads are retried with cfg; writes run once.
func NewLedger(client *firestore.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Ledger {
	return &Ledger{client: client, cb: cb, cfg: cfg, logger: logger, now: time.Now}
}

func (l *Ledger) profileRef(uid string) *firestore.DocumentRef {
	return l.client.Collection(usersCollection).Doc(uid)
}

// InitializeProfile returns users/{uid}, creating it with the starter balance
// inside a transaction when it does not exist yet.
func (l *Ledger) InitializeProfile(ctx context.Context, id *domain.Identity) (*domain.UserProfile, bool, error) {
	ctx, span := tracer.Start(ctx, "Ledger.InitializeProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", id.UID))

	ref := l.profileRef(id.UID)
	var (
		profile *domain.UserProfile
		created bool
	)
	err := resilience.Call(ctx, l.cb, serviceName, resilience.NoRetry, func() error {
		return l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(ref)
			if err == nil {
				var p domain.UserProfile
				if err := snap.DataTo(&p); err != nil {
					return resilience.Permanent(fmt.Errorf("decode profile %s: %w", id.UID, err))
				}
				p.UID = snap.Ref.ID
				profile, created = &p, false
				return nil
			}
			if status.Code(err) != codes.NotFound {
				return err
			}
			profile, created = domain.NewUserProfile(id, l.now()), true
			return tx.Create(ref, profile)
		})
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		l.logger.Info("profile created",
			zap.String("uid", id.UID),
			zap.Int("credits", profile.Credits),
		)
	}
	return profile, created, nil
}

// FetchProfile reads users/{uid}.
func (l *Ledger) FetchProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Ledger.FetchProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	var profile domain.UserProfile
	err := resilience.Call(ctx, l.cb, serviceName, l.cfg, func() error {
		snap, err := l.profileRef(uid).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "profile", ID: uid})
			}
			return err
		}
		if err := snap.DataTo(&profile); err != nil {
			return resilience.Permanent(fmt.Errorf("decode profile %s: %w", uid, err))
		}
		profile.UID = snap.Ref.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile writes the user-editable fields.
func (l *Ledger) UpdateProfile(ctx context.Context, uid string, upd domain.ProfileUpdate) error {
	ctx, span := tracer.Start(ctx, "Ledger.UpdateProfile")
	defer span.End()

	return resilience.Call(ctx, l.cb, serviceName, resilience.NoRetry, func() error {
		_, err := l.profileRef(uid).Update(ctx, []firestore.Update{
			{Path: "displayName", Value: upd.DisplayName},
			{Path: "photoURL", Value: upd.PhotoURL},
		})
		return notFoundAsDomain(err, "profile", uid)
	})
}

// Deduct decrements credits by one inside a transaction. A missing profile or
// a non-positive balance yields false and leaves the record untouched.
func (l *Ledger) Deduct(ctx context.Context, uid string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Deduct")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	ref := l.profileRef(uid)
	var deducted bool
	err := resilience.Call(ctx, l.cb, serviceName, resilience.NoRetry, func() error {
		return l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			deducted = false
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			}
			var p domain.UserProfile
			if err := snap.DataTo(&p); err != nil {
				return resilience.Permanent(fmt.Errorf("decode profile %s: %w", uid, err))
			}
			if p.Credits <= 0 {
				return nil
			}
			deducted = true
			return tx.Update(ref, []firestore.Update{
				{Path: "credits", Value: firestore.Increment(-1)},
			})
		})
	})
	if err != nil {
		return false, err
	}
	return deducted, nil
}

// Grant adds amount credits and sets the plan to pro.
func (l *Ledger) Grant(ctx context.Context, uid string, amount int) error {
	ctx, span := tracer.Start(ctx, "Ledger.Grant")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid), attribute.Int("credits.amount", amount))

	return resilience.Call(ctx, l.cb, serviceName, resilience.NoRetry, func() error {
		_, err := l.profileRef(uid).Update(ctx, []firestore.Update{
			{Path: "credits", Value: firestore.Increment(amount)},
			{Path: "plan", Value: domain.PlanPro},
		})
		return notFoundAsDomain(err, "profile", uid)
	})
}

// Name identifies the dependency in health reports.
func (l *Ledger) Name() string { return serviceName }

// Ping issues a minimal read to check connectivity.
func (l *Ledger) Ping(ctx context.Context) error {
	iter := l.client.Collection(usersCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// notFoundAsDomain maps a gRPC NotFound onto a permanent domain error.
func notFoundAsDomain(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
	}
	return err
}

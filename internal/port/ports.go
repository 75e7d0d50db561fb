// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
)

// ContentGenerator calls a remote LLM backend and returns its raw payload.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error)
}

// DocumentGenerator turns a prompt into a validated document.
type DocumentGenerator interface {
	Generate(ctx context.Context, uid, prompt string) (*domain.GeneratedDocument, error)
}

// CreditLedger reads and mutates the per-user profile and credit balance.
type CreditLedger interface {
	// InitializeProfile returns the stored profile, creating it on first
	// authentication. created reports whether a new record was written.
	InitializeProfile(ctx context.Context, id *domain.Identity) (profile *domain.UserProfile, created bool, err error)
	// FetchProfile returns *domain.ErrNotFound when no record exists.
	FetchProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, upd domain.ProfileUpdate) error
	// Deduct removes exactly one credit. It returns false without mutating
	// anything when the balance is not positive.
	Deduct(ctx context.Context, uid string) (bool, error)
	// Grant adds amount credits and moves the profile to the pro plan.
	Grant(ctx context.Context, uid string, amount int) error
}

// HistoryStore is CRUD over users/{uid}/documents.
type HistoryStore interface {
	// List returns documents newest first.
	List(ctx context.Context, uid string) ([]domain.GeneratedDocument, error)
	Get(ctx context.Context, uid, id string) (*domain.GeneratedDocument, error)
	Save(ctx context.Context, uid string, doc *domain.GeneratedDocument) (string, error)
	Update(ctx context.Context, uid string, doc *domain.GeneratedDocument) error
	Delete(ctx context.Context, uid, id string) error
	// DeleteAll removes every document of the user or none of them.
	DeleteAll(ctx context.Context, uid string) error
}

// PDFRenderer prints a standalone HTML page to PDF.
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ExportDispatcher submits an exported document to the delivery webhook.
type ExportDispatcher interface {
	Dispatch(ctx context.Context, payload *domain.ExportPayload) error
}

// TokenVerifier resolves a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
	// SignOut invalidates the user's outstanding sessions at the provider.
	SignOut(ctx context.Context, uid string) error
}

// GenerationLock serializes generation sequences of one user across replicas.
type GenerationLock interface {
	// Acquire returns a release func when the lock was taken, or ok=false
	// when another sequence holds it.
	Acquire(ctx context.Context, uid string, ttl time.Duration) (release func(), ok bool, err error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

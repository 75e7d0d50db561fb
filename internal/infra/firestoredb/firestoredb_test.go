package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
)

// newEmulatorClient connects to the Firestore emulator. The tests are skipped
// unless FIRESTORE_EMULATOR_HOST is set.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-docflow")
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func uniqueUID(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestLedger_InitializeOnceAndDeduct(t *testing.T) {
	client := newEmulatorClient(t)
	ledger := NewLedger(client, resilience.NewCircuitBreaker("test"), resilience.NoRetry, zap.NewNop())
	ctx := context.Background()
	uid := uniqueUID(t)

	p, created, err := ledger.InitializeProfile(ctx, &domain.Identity{UID: uid, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("InitializeProfile: %v", err)
	}
	if !created || p.Credits != domain.InitialCredits || p.Plan != domain.PlanFree {
		t.Fatalf("unexpected new profile: created=%v %+v", created, p)
	}

	if _, created, err = ledger.InitializeProfile(ctx, &domain.Identity{UID: uid}); err != nil || created {
		t.Fatalf("second initialize: created=%v err=%v", created, err)
	}

	ok, err := ledger.Deduct(ctx, uid)
	if err != nil || !ok {
		t.Fatalf("Deduct: ok=%v err=%v", ok, err)
	}
	got, err := ledger.FetchProfile(ctx, uid)
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if got.Credits != domain.InitialCredits-1 {
		t.Errorf("expected %d credits, got %d", domain.InitialCredits-1, got.Credits)
	}
}

func TestLedger_FetchMissingProfile(t *testing.T) {
	client := newEmulatorClient(t)
	ledger := NewLedger(client, resilience.NewCircuitBreaker("test"), resilience.NoRetry, zap.NewNop())

	_, err := ledger.FetchProfile(context.Background(), uniqueUID(t))

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedger_DeductAtZero(t *testing.T) {
	client := newEmulatorClient(t)
	ledger := NewLedger(client, resilience.NewCircuitBreaker("test"), resilience.NoRetry, zap.NewNop())
	ctx := context.Background()
	uid := uniqueUID(t)

	if _, err := client.Collection(usersCollection).Doc(uid).Set(ctx, &domain.UserProfile{UID: uid, Credits: 0, Plan: domain.PlanFree}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := ledger.Deduct(ctx, uid)
	if err != nil || ok {
		t.Fatalf("expected refused deduction, got ok=%v err=%v", ok, err)
	}
}

func TestHistory_SaveListDeleteAll(t *testing.T) {
	client := newEmulatorClient(t)
	history := NewHistory(client, resilience.NewCircuitBreaker("test"), resilience.NoRetry, zap.NewNop())
	ctx := context.Background()
	uid := uniqueUID(t)

	for _, title := range []string{"First", "Second"} {
		if _, err := history.Save(ctx, uid, &domain.GeneratedDocument{Title: title, HTMLContent: "<p>x</p>", CreatedDate: "today"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	docs, err := history.List(ctx, uid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 || docs[0].Title != "Second" {
		t.Fatalf("expected newest first, got %+v", docs)
	}

	if err := history.DeleteAll(ctx, uid); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	docs, err = history.List(ctx, uid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty history, got %d", len(docs))
	}
}

func TestHistory_StoresTimestampAlongsideExistingDocuments(t *testing.T) {
	client := newEmulatorClient(t)
	history := NewHistory(client, resilience.NewCircuitBreaker("test"), resilience.NoRetry, zap.NewNop())
	ctx := context.Background()
	uid := uniqueUID(t)

	// A document written by the browser app carries a native timestamp.
	if _, err := history.documents(uid).Doc("from-browser").Set(ctx, map[string]any{
		"title":              "From browser",
		"htmlContent":        "<p>old</p>",
		"createdDate":        "yesterday",
		"createdAtTimestamp": time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	id, err := history.Save(ctx, uid, &domain.GeneratedDocument{Title: "From server", HTMLContent: "<p>new</p>", CreatedDate: "today"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := history.documents(uid).Doc(id).Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := snap.Data()["createdAtTimestamp"].(time.Time); !ok {
		t.Errorf("expected createdAtTimestamp stored as a timestamp, got %T", snap.Data()["createdAtTimestamp"])
	}

	docs, err := history.List(ctx, uid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected both documents listed, got %+v", docs)
	}
	if docs[0].Title != "From server" || docs[1].Title != "From browser" {
		t.Errorf("expected newest first, got %q then %q", docs[0].Title, docs[1].Title)
	}
	if docs[1].CreatedAtTimestamp.IsZero() {
		t.Error("expected the browser document timestamp to decode")
	}
}

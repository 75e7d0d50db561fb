package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/memstore"
)

func seed(t *testing.T, s *memstore.Store, uid string, credits, docs int) {
	t.Helper()
	s.PutProfile(domain.UserProfile{UID: uid, Email: uid + "@example.com", Credits: credits, Plan: domain.PlanFree})
	for i := 0; i < docs; i++ {
		if _, err := s.Save(context.Background(), uid, &domain.GeneratedDocument{Title: "Doc", HTMLContent: "<p>x</p>"}); err != nil {
			t.Fatalf("seed save: %v", err)
		}
	}
}

func TestInitializeProfile_CreatesOnce(t *testing.T) {
	s := memstore.New()
	id := &domain.Identity{UID: "u1", Email: "a@b.co", DisplayName: "Ana"}

	p, created, err := s.InitializeProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !created {
		t.Error("expected profile to be created")
	}
	if p.Credits != domain.InitialCredits || p.Plan != domain.PlanFree {
		t.Errorf("expected %d credits on free plan, got %d on %s", domain.InitialCredits, p.Credits, p.Plan)
	}

	_, created, err = s.InitializeProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created {
		t.Error("expected existing profile to be returned")
	}
}

func TestFetchProfile_NotFound(t *testing.T) {
	s := memstore.New()

	_, err := s.FetchProfile(context.Background(), "ghost")

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeduct_FailsClosedAtZero(t *testing.T) {
	s := memstore.New()
	seed(t, s, "u1", 1, 0)

	ok, err := s.Deduct(context.Background(), "u1")
	if err != nil || !ok {
		t.Fatalf("expected first deduction to succeed, got ok=%v err=%v", ok, err)
	}
	ok, err = s.Deduct(context.Background(), "u1")
	if err != nil || ok {
		t.Fatalf("expected second deduction to fail closed, got ok=%v err=%v", ok, err)
	}

	p, _ := s.FetchProfile(context.Background(), "u1")
	if p.Credits != 0 {
		t.Errorf("expected balance 0, got %d", p.Credits)
	}
}

func TestGrant_MovesToPro(t *testing.T) {
	s := memstore.New()
	seed(t, s, "u1", 0, 0)

	if err := s.Grant(context.Background(), "u1", 10); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	p, _ := s.FetchProfile(context.Background(), "u1")
	if p.Credits != 10 || p.Plan != domain.PlanPro {
		t.Errorf("expected 10 credits on pro, got %d on %s", p.Credits, p.Plan)
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := memstore.New()
	s.PutProfile(domain.UserProfile{UID: "u1"})
	for _, title := range []string{"first", "second", "third"} {
		if _, err := s.Save(context.Background(), "u1", &domain.GeneratedDocument{Title: title}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	docs, err := s.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if docs[0].Title != "third" || docs[2].Title != "first" {
		t.Errorf("expected newest first, got %s, %s, %s", docs[0].Title, docs[1].Title, docs[2].Title)
	}
	if docs[0].ID == "" {
		t.Error("expected store-assigned id")
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].CreatedAtTimestamp.IsZero() {
			t.Fatalf("expected a stored timestamp on %q", docs[i].Title)
		}
		if !docs[i-1].CreatedAtTimestamp.After(docs[i].CreatedAtTimestamp) {
			t.Errorf("expected %q stamped after %q", docs[i-1].Title, docs[i].Title)
		}
	}
}

func TestDeleteAll_RemovesEverything(t *testing.T) {
	s := memstore.New()
	seed(t, s, "u1", 5, 4)

	if err := s.DeleteAll(context.Background(), "u1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := s.DocumentCount("u1"); n != 0 {
		t.Errorf("expected 0 documents, got %d", n)
	}
}

func TestDeleteAll_AllOrNothing(t *testing.T) {
	s := memstore.New()
	seed(t, s, "u1", 5, 4)
	s.FailDeleteAllAfter(2)

	err := s.DeleteAll(context.Background(), "u1")
	if !errors.Is(err, memstore.ErrInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if n := s.DocumentCount("u1"); n != 4 {
		t.Errorf("expected all 4 documents to survive a failed batch, got %d", n)
	}
}

func TestFailOn(t *testing.T) {
	s := memstore.New()
	seed(t, s, "u1", 5, 0)
	boom := errors.New("unavailable")
	s.FailOn(memstore.OpSave, boom)

	if _, err := s.Save(context.Background(), "u1", &domain.GeneratedDocument{Title: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	s.FailOn(memstore.OpSave, nil)
	if _, err := s.Save(context.Background(), "u1", &domain.GeneratedDocument{Title: "x"}); err != nil {
		t.Fatalf("expected save to recover, got %v", err)
	}
}

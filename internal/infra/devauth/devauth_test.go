package devauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"

	"go.uber.org/zap"
)

func newTestAuthority(now *time.Time) *Authority {
	a := NewAuthority("test-secret", 15*time.Minute, zap.NewNop())
	a.now = func() time.Time { return *now }
	return a
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAuthority(&now)

	resp, err := a.Issue(&domain.Identity{UID: "u1", Email: "ana@example.com", DisplayName: "Ana"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("expected 900s expiry, got %d", resp.ExpiresIn)
	}

	id, err := a.Verify(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UID != "u1" || id.Email != "ana@example.com" || id.DisplayName != "Ana" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAuthority(&now)
	resp, _ := a.Issue(&domain.Identity{UID: "u1"})

	now = now.Add(16 * time.Minute)

	_, err := a.Verify(context.Background(), resp.AccessToken)
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	resp, _ := newTestAuthority(&now).Issue(&domain.Identity{UID: "u1"})

	other := NewAuthority("another-secret", time.Minute, zap.NewNop())
	if _, err := other.Verify(context.Background(), resp.AccessToken); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestSignOut_RevokesEarlierTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAuthority(&now)
	old, _ := a.Issue(&domain.Identity{UID: "u1"})

	now = now.Add(time.Second)
	if err := a.SignOut(context.Background(), "u1"); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := a.Verify(context.Background(), old.AccessToken); err == nil {
		t.Fatal("expected token issued before sign-out to be rejected")
	}

	now = now.Add(time.Second)
	fresh, _ := a.Issue(&domain.Identity{UID: "u1"})
	if _, err := a.Verify(context.Background(), fresh.AccessToken); err != nil {
		t.Fatalf("expected fresh token to be accepted, got %v", err)
	}
}

func TestIssue_RequiresUID(t *testing.T) {
	now := time.Now()
	_, err := newTestAuthority(&now).Issue(&domain.Identity{})

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

package firebase

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

type fakeAuth struct {
	token     *auth.Token
	err       error
	revoked   string
	revokeErr error
}

func (f *fakeAuth) VerifyIDTokenAndCheckRevoked(_ context.Context, _ string) (*auth.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.token != nil && f.token.UID == f.revoked {
		return nil, errors.New("ID token has been revoked")
	}
	return f.token, nil
}

func (f *fakeAuth) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = uid
	return f.revokeErr
}

func TestVerify_MapsClaims(t *testing.T) {
	v := &Verifier{
		auth: &fakeAuth{token: &auth.Token{
			UID: "uid-42",
			Claims: map[string]interface{}{
				"email":   "ana@example.com",
				"name":    "Ana Souza",
				"picture": "https://example.com/a.png",
			},
		}},
		logger: zap.NewNop(),
	}

	id, err := v.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id.UID != "uid-42" || id.Email != "ana@example.com" || id.DisplayName != "Ana Souza" || id.PhotoURL != "https://example.com/a.png" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestVerify_RejectsBadToken(t *testing.T) {
	v := &Verifier{auth: &fakeAuth{err: errors.New("expired")}, logger: zap.NewNop()}

	_, err := v.Verify(context.Background(), "token")

	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSignOut_RevokesTokens(t *testing.T) {
	fa := &fakeAuth{}
	v := &Verifier{auth: fa, logger: zap.NewNop()}

	if err := v.SignOut(context.Background(), "uid-42"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fa.revoked != "uid-42" {
		t.Errorf("expected tokens of uid-42 revoked, got %q", fa.revoked)
	}
}

func TestVerify_RejectsTokenAfterSignOut(t *testing.T) {
	fa := &fakeAuth{token: &auth.Token{UID: "uid-42"}}
	v := &Verifier{auth: fa, logger: zap.NewNop()}
	ctx := context.Background()

	if _, err := v.Verify(ctx, "token"); err != nil {
		t.Fatalf("expected token accepted before sign-out, got %v", err)
	}
	if err := v.SignOut(ctx, "uid-42"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := v.Verify(ctx, "token")

	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized after sign-out, got %v", err)
	}
}

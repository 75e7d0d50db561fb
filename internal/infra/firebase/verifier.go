package firebase

import (
	"context"
	"fmt"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"

	"firebase.google.com/go/v4/auth"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("firebase")

// tokenAuth is the subset of *auth.Client the verifier uses.
type tokenAuth interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Verifier checks Firebase ID tokens.
type Verifier struct {
	auth   tokenAuth
	logger *zap.Logger
}

// NewVerifier creates a Verifier backed by the Firebase Auth client.
func NewVerifier(client *auth.Client, logger *zap.Logger) *Verifier {
	return &Verifier{auth: client, logger: logger}
}

// Verify validates the ID token and returns the identity it carries. Tokens
// issued before a SignOut are rejected.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Verifier.Verify")
	defer span.End()

	token, err := v.auth.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		v.logger.Debug("firebase: token rejected", zap.Error(err))
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired authentication token"}
	}
	return identityFromToken(token), nil
}

// SignOut revokes the user's refresh tokens so other devices must sign in again.
func (v *Verifier) SignOut(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Verifier.SignOut")
	defer span.End()

	if err := v.auth.RevokeRefreshTokens(ctx, uid); err != nil {
		return &domain.ErrExternalService{Service: "firebase-auth", Err: fmt.Errorf("revoke refresh tokens: %w", err)}
	}
	return nil
}

func identityFromToken(token *auth.Token) *domain.Identity {
	id := &domain.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		id.PhotoURL = picture
	}
	return id
}

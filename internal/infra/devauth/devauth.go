// Package devauth issues and verifies HS256 access tokens for local
// development, standing in for Firebase Auth when DEV_AUTH is enabled.
package devauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const issuer = "docflow-dev"

// Claims are the custom claims in dev access tokens. They mirror the
// Firebase ID token claims the verifier reads.
type Claims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

// TokenResponse is returned by the dev token endpoint.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	UID         string `json:"uid"`
}

// Authority signs and validates dev tokens. SignOut records a revocation
// time per uid; tokens issued before it are rejected.
type Authority struct {
	secret    []byte
	accessTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewAuthority creates an Authority with the given HMAC secret.
func NewAuthority(secret string, accessTTL time.Duration, logger *zap.Logger) *Authority {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &Authority{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		logger:    logger,
		now:       time.Now,
		revoked:   make(map[string]time.Time),
	}
}

// Issue signs an access token for the identity.
func (a *Authority) Issue(id *domain.Identity) (*TokenResponse, error) {
	if id == nil || id.UID == "" {
		return nil, &domain.ErrValidation{Field: "uid", Message: "uid is required"}
	}
	now := a.now()
	claims := Claims{
		Sub:     id.UID,
		Email:   id.Email,
		Name:    id.DisplayName,
		Picture: id.PhotoURL,
		Type:    "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.accessTTL)),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &TokenResponse{
		AccessToken: signed,
		ExpiresIn:   int(a.accessTTL.Seconds()),
		UID:         id.UID,
	}, nil
}

// Verify validates a dev token and returns the identity it carries.
func (a *Authority) Verify(_ context.Context, tokenString string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired authentication token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid authentication token"}
	}
	if claims.Type != "access" || claims.Sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}

	a.mu.RLock()
	revokedAt, revoked := a.revoked[claims.Sub]
	a.mu.RUnlock()
	if revoked && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(revokedAt) {
		return nil, &domain.ErrUnauthorized{Message: "session was signed out"}
	}

	return &domain.Identity{
		UID:         claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// SignOut rejects every token of uid issued before now.
func (a *Authority) SignOut(_ context.Context, uid string) error {
	a.mu.Lock()
	a.revoked[uid] = a.now().Truncate(time.Second)
	a.mu.Unlock()

	a.logger.Info("dev tokens revoked", zap.String("uid", uid))
	return nil
}

package handler

import (
	"net/http"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/devauth"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Profile & Billing
// ============================================================

func getProfileHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/profile")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		profile := ctrl.Snapshot().Profile
		if profile == nil {
			handleServiceError(w, &domain.ErrAuthRequired{Action: "view the profile"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func updateProfileHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/profile")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}

		var upd domain.ProfileUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		snap, err := ctrl.UpdateProfile(ctx, upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap.Profile)
	}
}

func upgradeHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/billing/upgrade")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		resp, err := ctrl.Upgrade(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("credits.granted", resp.Granted))
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Public catalog
// ============================================================

func plansHandler(upgradeCredits int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.Plans(upgradeCredits))
	}
}

func examplePromptsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.ListResponse[string]{
			Data:  domain.ExamplePrompts,
			Total: len(domain.ExamplePrompts),
		})
	}
}

func generationMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetGenerationSnapshot())
	}
}

// ============================================================
// Dev auth POST /v1/auth/dev-token
// ============================================================

type devTokenRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

func devTokenHandler(authority *devauth.Authority, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/auth/dev-token")
		defer span.End()

		var req devTokenRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		resp, err := authority.Issue(&domain.Identity{
			UID:         req.UID,
			Email:       req.Email,
			DisplayName: req.DisplayName,
			PhotoURL:    req.PhotoURL,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("dev token issued", zap.String("uid", resp.UID))
		writeJSON(w, http.StatusOK, resp)
	}
}

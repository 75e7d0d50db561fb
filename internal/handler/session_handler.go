package handler

import (
	"net/http"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Session /v1/session
// ============================================================

// controllerFor resolves the caller's live controller or writes the error.
func controllerFor(sessions *service.Sessions, w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*service.Controller, bool) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	ctrl, err := sessions.Get(id.UID)
	if err != nil {
		handleServiceError(w, err, logger)
		return nil, false
	}
	return ctrl, true
}

func openSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session")
		defer span.End()

		id := IdentityFromContext(ctx)
		if id == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		span.SetAttributes(attribute.String("user.uid", id.UID))

		ctrl, err := sessions.Open(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	}
}

func getSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/session")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	}
}

func closeSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/session")
		defer span.End()

		id := IdentityFromContext(ctx)
		if id == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := sessions.Close(ctx, id.UID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "signed out"})
	}
}

func refreshSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session/refresh")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.Refresh(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func navigateHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/session/navigate")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}

		var req domain.NavigateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		step, valid := domain.ParseAppStep(req.Step)
		if !valid {
			writeError(w, http.StatusBadRequest, "unknown step: "+req.Step)
			return
		}
		span.SetAttributes(attribute.String("session.step", string(step)))

		snap, err := ctrl.Navigate(step)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func resetHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/session/reset")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.Reset()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

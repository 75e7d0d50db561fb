package handler

import (
	"net/http"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// History /v1/history
// ============================================================

func listHistoryHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/history")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		docs := ctrl.ListHistory(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.GeneratedDocument]{
			Data:  docs,
			Total: len(docs),
		})
	}
}

func selectHistoryHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/history/{documentId}/select")
		defer span.End()

		documentID := chi.URLParam(r, "documentId")
		span.SetAttributes(attribute.String("document.id", documentID))

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.SelectFromHistory(ctx, documentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func deleteHistoryHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/history/{documentId}")
		defer span.End()

		documentID := chi.URLParam(r, "documentId")
		span.SetAttributes(attribute.String("document.id", documentID))

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		if err := ctrl.DeleteHistory(ctx, documentID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "document deleted", ID: documentID})
	}
}

func deleteAllHistoryHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/history")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		if err := ctrl.DeleteAllHistory(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "history cleared"})
	}
}

package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Documents /v1/documents
// ============================================================

func generateHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/documents/generate")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}

		var req domain.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.Int("prompt.length", len(req.Prompt)))

		snap, err := ctrl.Generate(ctx, req.Prompt)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func beginEditHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/documents/edit")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.BeginEdit()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func saveEditHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "PUT /v1/documents/edit")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}

		var req domain.EditRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		snap, err := ctrl.SaveEdit(req.HTMLContent)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func cancelEditHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/documents/edit")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.CancelEdit()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func persistHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/documents/persist")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.Persist(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func attachSignatureHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/documents/signature")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}

		var req domain.SignatureRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.Int("signature.strokes", len(req.Strokes)))

		sig, err := service.RasterizeSignature(&req, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		snap, err := ctrl.AttachSignature(sig)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func clearSignatureHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/documents/signature")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}
		snap, err := ctrl.ClearSignature()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func exportHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/documents/export")
		defer span.End()

		ctrl, ok := controllerFor(sessions, w, r, logger)
		if !ok {
			return
		}

		var req domain.ExportRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		receipt, err := ctrl.Export(ctx, req.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

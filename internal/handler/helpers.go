package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// maxBodyBytes bounds request bodies; signature strokes are the largest.
const maxBodyBytes = 2 << 20

// statusClientClosedRequest answers requests whose caller went away.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var authRequired *domain.ErrAuthRequired
	var creditsExhausted *domain.ErrCreditsExhausted
	var inProgress *domain.ErrGenerationInProgress
	var invalidTransition *domain.ErrInvalidTransition
	var generation *domain.ErrGeneration
	var persistence *domain.ErrPersistence
	var export *domain.ErrExport
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var rateLimited *domain.ErrRateLimited
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService

	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("request cancelled by client")
		writeError(w, statusClientClosedRequest, "request cancelled")
	case errors.As(err, &authRequired):
		logger.Debug("session required", zap.String("action", authRequired.Action))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &creditsExhausted):
		logger.Info("credits exhausted", zap.String("uid", creditsExhausted.UID))
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &inProgress):
		logger.Debug("generation already in progress", zap.String("uid", inProgress.UID))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidTransition):
		logger.Debug("invalid transition", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &generation):
		logger.Warn("generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to generate document: please try again")
	case errors.As(err, &persistence):
		logger.Error("persistence failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &export):
		logger.Error("export failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to send document")
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &rateLimited):
		logger.Info("rate limited", zap.String("operation", rateLimited.Operation))
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "a required service is unavailable, please retry")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

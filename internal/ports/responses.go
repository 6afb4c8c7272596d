package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/domain"
	"github.com/operately/pagedata/internal/reporting"
)

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSON(w http.ResponseWriter, statusCode int, response []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(response)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, cause string) {
	response, err := json.Marshal(errorResponse{Success: false, Cause: cause})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, []byte(`{"success":false,"cause":"internal server error"}`))
		return
	}
	writeJSON(w, statusCode, response)
}

func writeSuccessResponse(ctx context.Context, w http.ResponseWriter, data any) {
	response, err := json.Marshal(successResponse{Success: true, Data: data})
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal success response: %w", err))
		writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// writeAppError maps errors from the app layer to a response.
// The app layer and its adapters report their own errors.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, cache.ErrInvalidKey):
		writeErrorResponse(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorResponse(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorResponse(w, http.StatusGatewayTimeout, "timed out")
	case errors.Is(err, domain.ErrTemporarilyUnavailable), errors.Is(err, context.Canceled):
		writeErrorResponse(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

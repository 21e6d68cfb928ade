package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/deal-agents/internal/contracts"
	"github.com/viralforge/deal-agents/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "invalid or missing credentials"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, domain.ErrAlreadySettled):
		return http.StatusConflict, "already_settled", err.Error()
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress", err.Error()
	case errors.Is(err, domain.ErrNeedsReconciliation):
		return http.StatusConflict, "needs_reconciliation", err.Error()
	case errors.Is(err, domain.ErrNegotiationClosed):
		return http.StatusConflict, "negotiation_closed", err.Error()
	case errors.Is(err, domain.ErrOracleUnavailable):
		return http.StatusServiceUnavailable, "oracle_unavailable", "decision oracle unavailable"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

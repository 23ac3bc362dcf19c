package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront-ledger/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// shortfallDetails describes an InsufficientStockError to API clients.
type shortfallDetails struct {
	StoreID   int64  `json:"store_id"`
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Shortfall int    `json:"shortfall"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeCreated writes a JSON response with status 201.
func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}

// serviceError maps a domain error onto an HTTP status and error code.
// Anything unrecognised is logged and reported as a 500 without its message.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *core.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeErrorDetails(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict, shortfallDetails{
			StoreID:   stockErr.StoreID,
			SKU:       stockErr.SKU,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
			Shortfall: stockErr.Shortfall(),
		})
	case errors.Is(err, core.ErrSkuNotFound):
		writeError(w, r, err.Error(), "SKU_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrStoreNotFound):
		writeError(w, r, err.Error(), "STORE_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrOrderNotFound):
		writeError(w, r, err.Error(), "ORDER_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrUserNotFound):
		writeError(w, r, err.Error(), "USER_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrMasterStoreUninitialized):
		writeError(w, r, err.Error(), "MASTER_STORE_UNINITIALIZED", http.StatusConflict)
	case errors.Is(err, core.ErrMasterStoreExists):
		writeError(w, r, err.Error(), "MASTER_STORE_EXISTS", http.StatusConflict)
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
	case core.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, r, "the ledger is busy, try again", "TRY_AGAIN", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

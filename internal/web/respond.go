package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleBackendError maps storefront and backend failures to HTTP statuses.
func handleBackendError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	respondJSON(w, status, resp)
}

func errorResponse(err error) (int, ErrorResponse) {
	message := err.Error()
	var checkoutErr *checkout.Error
	if errors.As(err, &checkoutErr) {
		message = checkoutErr.Message()
	}

	var (
		apiErr       *backend.APIError
		transportErr *backend.TransportError
		decodeErr    *backend.DecodeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "backend request timed out", Code: "timeout"}
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, ErrorResponse{Error: "cart is empty", Code: "empty_cart"}
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "product not found", Code: "product_not_found"}
	case errors.Is(err, catalog.ErrSuperseded):
		return http.StatusConflict, ErrorResponse{Error: "a newer catalog request replaced this one", Code: "superseded"}
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		status := apiErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return status, ErrorResponse{Error: message, Code: "backend_rejected", Details: apiErr.Detail}
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, ErrorResponse{Error: message, Code: "backend_error", Details: apiErr.Detail}
	case errors.Is(err, backend.ErrUnavailable), errors.As(err, &transportErr):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "backend unavailable", Code: "service_unavailable"}
	case errors.As(err, &decodeErr):
		return http.StatusBadGateway, ErrorResponse{Error: "invalid backend response", Code: "backend_error"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"}
	}
}

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
)

type CheckoutHandler struct {
	invoker *checkout.Invoker
	timeout time.Duration
}

func NewCheckoutHandler(invoker *checkout.Invoker, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		invoker: invoker,
		timeout: timeout,
	}
}

type CheckoutResponseDTO struct {
	OrderID string `json:"order_id"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sid, ok := getSessionID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	order, err := h.invoker.Checkout(ctx, sid)
	if err != nil {
		handleBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{OrderID: order.ID})
}

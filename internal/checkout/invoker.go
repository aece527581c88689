// Package checkout places orders for a session's cart.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

// UnknownDetail is reported when the backend gave no reason for a failure.
const UnknownDetail = "Unknown error"

var ErrEmptyCart = errors.New("cart is empty")

// Error is a failed checkout. Detail is the backend's reason, or
// UnknownDetail.
type Error struct {
	Detail string
	cause  error
}

func (e *Error) Error() string {
	return "checkout failed: " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Message is the user-facing notice.
func (e *Error) Message() string {
	return "Checkout failed: " + e.Detail
}

type Backend interface {
	Checkout(ctx context.Context, sessionID string, customer domain.Customer) (domain.Order, error)
}

// Cart is the part of the cart synchronizer checkout depends on.
type Cart interface {
	WithLock(sid session.ID, fn func(cart.Locked) error) error
}

type Invoker struct {
	backend  Backend
	cart     Cart
	customer domain.Customer
	log      *zap.Logger
}

func NewInvoker(b Backend, carts Cart, customer domain.Customer, log *zap.Logger) *Invoker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{backend: b, cart: carts, customer: customer, log: log}
}

// Checkout submits the session's cart. On success the local cart is reset;
// on failure it is left as it was. Cart mutations of the session wait until
// the order is settled.
func (i *Invoker) Checkout(ctx context.Context, sid session.ID) (domain.Order, error) {
	var order domain.Order
	err := i.cart.WithLock(sid, func(c cart.Locked) error {
		current, err := c.Load(ctx)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if current.IsEmpty() {
			return ErrEmptyCart
		}

		order, err = i.backend.Checkout(ctx, sid.String(), i.customer)
		if err != nil {
			i.log.Warn("checkout failed", zap.String("session_id", sid.String()), zap.Error(err))
			return &Error{Detail: failureDetail(err), cause: err}
		}

		if err := c.Clear(ctx); err != nil {
			i.log.Error("reset cart after checkout", zap.String("session_id", sid.String()), zap.String("order_id", order.ID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	i.log.Info("order placed", zap.String("session_id", sid.String()), zap.String("order_id", order.ID))
	return order, nil
}

func failureDetail(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return UnknownDetail
}

package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/backend/backendtest"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sid = session.ID("c4ca4238-a0b9-4382-8dcc-509a6f75849b")

type mockBackend struct {
	order    domain.Order
	err      error
	calls    int
	customer domain.Customer
	entered  chan struct{}
	gate     chan struct{}
}

func (m *mockBackend) Checkout(_ context.Context, _ string, customer domain.Customer) (domain.Order, error) {
	m.calls++
	m.customer = customer
	if m.gate != nil {
		close(m.entered)
		<-m.gate
	}
	return m.order, m.err
}

type mockCart struct {
	cart     domain.Cart
	loadErr  error
	clearErr error
	cleared  bool
	locked   int
}

func (m *mockCart) WithLock(_ session.ID, fn func(cart.Locked) error) error {
	m.locked++
	return fn(m)
}

func (m *mockCart) Load(context.Context) (domain.Cart, error) {
	if m.loadErr != nil {
		return domain.Cart{}, m.loadErr
	}
	return m.cart, nil
}

func (m *mockCart) Clear(context.Context) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = true
	m.cart = domain.EmptyCart(m.cart.SessionID)
	return nil
}

func filledCart() *mockCart {
	return &mockCart{cart: domain.Cart{
		SessionID: sid.String(),
		Items:     []domain.CartItem{{ProductID: "p1", Title: "Widget", Price: 9.99, Quantity: 2}},
		Subtotal:  19.98,
	}}
}

func TestCheckout_SuccessResetsCart(t *testing.T) {
	mb := &mockBackend{order: domain.Order{ID: "abc123"}}
	mc := filledCart()
	inv := NewInvoker(mb, mc, domain.GuestCustomer(), zaptest.NewLogger(t))

	order, err := inv.Checkout(context.Background(), sid)
	require.NoError(t, err)

	assert.Equal(t, "abc123", order.ID)
	assert.Equal(t, 1, mc.locked)
	assert.True(t, mc.cleared)
	assert.Empty(t, mc.cart.Items)
	assert.Equal(t, 0.0, mc.cart.Subtotal)
	assert.Equal(t, domain.GuestCustomer(), mb.customer)
}

func TestCheckout_FailureKeepsCartAndSurfacesDetail(t *testing.T) {
	mb := &mockBackend{err: &backend.APIError{Op: "checkout", Status: 400, Detail: "out of stock"}}
	mc := filledCart()
	before := mc.cart
	inv := NewInvoker(mb, mc, domain.GuestCustomer(), zaptest.NewLogger(t))

	_, err := inv.Checkout(context.Background(), sid)
	require.Error(t, err)

	var checkoutErr *Error
	require.ErrorAs(t, err, &checkoutErr)
	assert.Equal(t, "out of stock", checkoutErr.Detail)
	assert.Contains(t, checkoutErr.Message(), "out of stock")
	assert.False(t, mc.cleared)
	assert.Equal(t, before, mc.cart)

	var apiErr *backend.APIError
	assert.ErrorAs(t, err, &apiErr, "cause must stay reachable")
}

func TestCheckout_FailureWithoutDetail(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"api error without detail", &backend.APIError{Op: "checkout", Status: 500}},
		{"transport failure", &backend.TransportError{Op: "checkout", Err: errors.New("connection refused")}},
		{"breaker open", &backend.TransportError{Op: "checkout", Err: backend.ErrUnavailable}},
		{"decode failure", &backend.DecodeError{Op: "checkout", Err: errors.New("unexpected EOF")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInvoker(&mockBackend{err: tt.err}, filledCart(), domain.GuestCustomer(), zaptest.NewLogger(t))

			_, err := inv.Checkout(context.Background(), sid)

			var checkoutErr *Error
			require.ErrorAs(t, err, &checkoutErr)
			assert.Equal(t, UnknownDetail, checkoutErr.Detail)
			assert.Equal(t, "Checkout failed: Unknown error", checkoutErr.Message())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCheckout_EmptyCartRejectedLocally(t *testing.T) {
	mb := &mockBackend{order: domain.Order{ID: "abc123"}}
	inv := NewInvoker(mb, &mockCart{cart: domain.EmptyCart(sid.String())}, domain.GuestCustomer(), zaptest.NewLogger(t))

	_, err := inv.Checkout(context.Background(), sid)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, mb.calls)
}

func TestCheckout_ClearFailureStillReturnsOrder(t *testing.T) {
	mc := filledCart()
	mc.clearErr = errors.New("redis down")
	inv := NewInvoker(&mockBackend{order: domain.Order{ID: "abc123"}}, mc, domain.GuestCustomer(), zaptest.NewLogger(t))

	order, err := inv.Checkout(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "abc123", order.ID)
}

func TestCheckout_AgainstBackendAPI(t *testing.T) {
	srv := backendtest.New(t)
	srv.Seed()
	client := backend.NewClient(srv.URL, 2*time.Second)
	carts := cart.NewSynchronizer(client, cart.NewMemoryStore(), zaptest.NewLogger(t))
	inv := NewInvoker(client, carts, domain.GuestCustomer(), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := carts.Add(ctx, sid, domain.Product{ID: "p1", Title: "Widget", Price: 9.99})
	require.NoError(t, err)

	srv.FailCheckout("out of stock")
	_, err = inv.Checkout(ctx, sid)
	require.Error(t, err)
	assert.Equal(t, 1, carts.Load(ctx, sid).TotalQuantity())

	srv.FailCheckout("")
	order, err := inv.Checkout(ctx, sid)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.True(t, carts.Load(ctx, sid).IsEmpty())
}

func TestCheckout_LoadFailureSkipsBackend(t *testing.T) {
	mb := &mockBackend{order: domain.Order{ID: "abc123"}}
	mc := filledCart()
	mc.loadErr = &backend.TransportError{Op: "get cart", Err: errors.New("connection refused")}
	inv := NewInvoker(mb, mc, domain.GuestCustomer(), zaptest.NewLogger(t))

	_, err := inv.Checkout(context.Background(), sid)

	var transportErr *backend.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 0, mb.calls)
	assert.False(t, mc.cleared)
}

func TestCheckout_HoldsCartLockUntilSettled(t *testing.T) {
	carts := cart.NewSynchronizer(&remoteCart{}, cart.NewMemoryStore(), zaptest.NewLogger(t))
	ctx := context.Background()
	_, err := carts.Add(ctx, sid, domain.Product{ID: "p1", Title: "Widget", Price: 9.99})
	require.NoError(t, err)

	mb := &mockBackend{order: domain.Order{ID: "abc123"}, entered: make(chan struct{}), gate: make(chan struct{})}
	inv := NewInvoker(mb, carts, domain.GuestCustomer(), zaptest.NewLogger(t))

	placed := make(chan error, 1)
	go func() {
		_, err := inv.Checkout(ctx, sid)
		placed <- err
	}()
	<-mb.entered

	added := make(chan domain.Cart, 1)
	go func() {
		c, err := carts.Add(ctx, sid, domain.Product{ID: "p3", Title: "Yo-yo", Price: 3.25})
		assert.NoError(t, err)
		added <- c
	}()

	select {
	case <-added:
		t.Fatal("add completed while checkout was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(mb.gate)
	require.NoError(t, <-placed)

	got := <-added
	assert.Equal(t, []domain.CartItem{{ProductID: "p3", Title: "Yo-yo", Price: 3.25, Quantity: 1}}, got.Items)
	assert.Equal(t, got, carts.Load(ctx, sid))
}

// remoteCart is a cart backend that accepts every replace.
type remoteCart struct {
	mu    sync.Mutex
	items []domain.CartItem
}

func (r *remoteCart) Cart(_ context.Context, sessionID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Cart{SessionID: sessionID, Items: append([]domain.CartItem{}, r.items...)}, nil
}

func (r *remoteCart) ReplaceCart(_ context.Context, _ string, items []domain.CartItem) (backend.ReplaceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]domain.CartItem{}, items...)
	subtotal := 0.0
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	return backend.ReplaceResult{Subtotal: subtotal}, nil
}

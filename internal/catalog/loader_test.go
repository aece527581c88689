package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource serves fixed data; hooks, when set, take over a call.
type fakeSource struct {
	categories    []domain.Category
	products      []domain.Product
	err           error
	categoryCalls atomic.Int32
	productCalls  atomic.Int32
	productsHook  func(ctx context.Context, f backend.ProductFilter) ([]domain.Product, error)
	categoryGate  chan struct{}
}

func (f *fakeSource) Categories(ctx context.Context) ([]domain.Category, error) {
	f.categoryCalls.Add(1)
	if f.categoryGate != nil {
		<-f.categoryGate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.categories, nil
}

func (f *fakeSource) Products(ctx context.Context, filter backend.ProductFilter) ([]domain.Product, error) {
	f.productCalls.Add(1)
	if f.productsHook != nil {
		return f.productsHook(ctx, filter)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func TestLoadCategories_Success(t *testing.T) {
	src := &fakeSource{categories: []domain.Category{{ID: "1", Slug: "home", Name: "Home"}}}
	loader := NewLoader(src, zaptest.NewLogger(t))

	got := loader.LoadCategories(context.Background())
	assert.Equal(t, src.categories, got)
}

func TestLoadCategories_FailureDegradesToEmpty(t *testing.T) {
	loader := NewLoader(&fakeSource{err: errors.New("connection refused")}, zaptest.NewLogger(t))

	got := loader.LoadCategories(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadCategories_ConcurrentCallersShareRequest(t *testing.T) {
	src := &fakeSource{
		categories:   []domain.Category{{ID: "1", Slug: "home", Name: "Home"}},
		categoryGate: make(chan struct{}),
	}
	loader := NewLoader(src, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	results := make([][]domain.Category, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = loader.LoadCategories(context.Background())
		}(i)
	}
	// Let every goroutine reach singleflight before releasing the backend.
	require.Eventually(t, func() bool { return src.categoryCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.categoryGate)
	wg.Wait()

	for _, r := range results {
		assert.Len(t, r, 1)
	}
	assert.LessOrEqual(t, src.categoryCalls.Load(), int32(5))
}

func TestLoadCategories_FirstCallerLeavingDoesNotFailOthers(t *testing.T) {
	src := &fakeSource{
		categories:   []domain.Category{{ID: "1", Slug: "home", Name: "Home"}},
		categoryGate: make(chan struct{}),
	}
	loader := NewLoader(src, zaptest.NewLogger(t))

	aCtx, cancelA := context.WithCancel(context.Background())
	first := make(chan []domain.Category, 1)
	go func() { first <- loader.LoadCategories(aCtx) }()
	require.Eventually(t, func() bool { return src.categoryCalls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan []domain.Category, 1)
	go func() { second <- loader.LoadCategories(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.Empty(t, <-first)
	close(src.categoryGate)

	assert.Equal(t, src.categories, <-second)
	assert.Equal(t, int32(1), src.categoryCalls.Load())
}

func TestFindProduct_SharedRefreshIgnoresCallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{}
	src.productsHook = func(ctx context.Context, _ backend.ProductFilter) ([]domain.Product, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []domain.Product{{ID: "p1", Title: "Widget", Price: 9.99}}, nil
	}
	loader := NewLoader(src, zaptest.NewLogger(t))

	aCtx, cancelA := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := loader.FindProduct(aCtx, "p1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.productCalls.Load() == 1 }, time.Second, time.Millisecond)

	type found struct {
		p   domain.Product
		err error
	}
	second := make(chan found, 1)
	go func() {
		p, err := loader.FindProduct(context.Background(), "p1")
		second <- found{p, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(gate)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "Widget", got.p.Title)
	assert.Equal(t, int32(1), src.productCalls.Load())
}

func TestLoadProducts_FailureDegradesToEmpty(t *testing.T) {
	loader := NewLoader(&fakeSource{err: &backend.TransportError{Op: "list products", Err: errors.New("refused")}}, zaptest.NewLogger(t))

	got := loader.LoadProducts(context.Background(), Filter{Category: "home"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindProduct_UsesIndexFromUnfilteredLoad(t *testing.T) {
	src := &fakeSource{products: []domain.Product{{ID: "p1", Title: "Widget", Price: 9.99}}}
	loader := NewLoader(src, zaptest.NewLogger(t))

	loader.LoadProducts(context.Background(), Filter{})
	require.Equal(t, int32(1), src.productCalls.Load())

	p, err := loader.FindProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Title)
	assert.Equal(t, int32(1), src.productCalls.Load(), "fresh index should be reused")
}

func TestFindProduct_RefreshesWhenStale(t *testing.T) {
	src := &fakeSource{products: []domain.Product{{ID: "p1", Title: "Widget"}}}
	loader := NewLoader(src, zaptest.NewLogger(t))
	now := time.Now()
	loader.now = func() time.Time { return now }

	loader.LoadProducts(context.Background(), Filter{})
	now = now.Add(IndexTTL + time.Second)

	_, err := loader.FindProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.productCalls.Load())
}

func TestFindProduct_Unknown(t *testing.T) {
	loader := NewLoader(&fakeSource{products: []domain.Product{{ID: "p1"}}}, zaptest.NewLogger(t))

	_, err := loader.FindProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestFindProduct_BackendFailureIsReturned(t *testing.T) {
	boom := errors.New("boom")
	loader := NewLoader(&fakeSource{err: boom}, zaptest.NewLogger(t))

	_, err := loader.FindProduct(context.Background(), "p1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrProductNotFound)
}

func TestFilteredLoadDoesNotReplaceIndex(t *testing.T) {
	src := &fakeSource{products: []domain.Product{{ID: "p1"}, {ID: "p2"}}}
	loader := NewLoader(src, zaptest.NewLogger(t))
	loader.LoadProducts(context.Background(), Filter{})

	src.products = []domain.Product{{ID: "p2"}}
	loader.LoadProducts(context.Background(), Filter{Category: "toys"})

	_, err := loader.FindProduct(context.Background(), "p1")
	assert.NoError(t, err)
}

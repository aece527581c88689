package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// ErrSuperseded is returned for a product request that was overtaken by a
// newer request on the same view.
var ErrSuperseded = errors.New("product request superseded by a newer filter")

// View is the displayed product list for one logical query stream (one
// shopper's grid). Every Request takes a new generation and cancels the
// request it replaces; only the latest generation's response is adopted.
type View struct {
	loader *Loader

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	filter     Filter
	products   []domain.Product
}

func NewView(loader *Loader) *View {
	return &View{loader: loader, products: []domain.Product{}}
}

// Request loads products for filter. It returns ErrSuperseded when another
// Request started before this one finished, in which case the view keeps the
// newer request's result.
func (v *View) Request(ctx context.Context, filter Filter) ([]domain.Product, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	v.generation++
	gen := v.generation
	if v.cancel != nil {
		v.cancel()
	}
	v.cancel = cancel
	v.mu.Unlock()

	products := v.loader.LoadProducts(reqCtx, filter)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return nil, ErrSuperseded
	}
	v.cancel = nil
	v.filter = filter
	v.products = products
	return products, nil
}

// Snapshot returns the adopted filter and product list.
func (v *View) Snapshot() (Filter, []domain.Product) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter, v.products
}

type viewEntry struct {
	view *View
	refs int
}

// Views hands out one View per key (a session id) while requests on that key
// are in flight.
type Views struct {
	loader *Loader

	mu    sync.Mutex
	views map[string]*viewEntry
}

func NewViews(loader *Loader) *Views {
	return &Views{loader: loader, views: make(map[string]*viewEntry)}
}

// Acquire returns the View for key. The caller must call release when its
// request is done; the View is dropped once nobody holds it.
func (vs *Views) Acquire(key string) (view *View, release func()) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	e, ok := vs.views[key]
	if !ok {
		e = &viewEntry{view: NewView(vs.loader)}
		vs.views[key] = e
	}
	e.refs++

	var once sync.Once
	return e.view, func() {
		once.Do(func() {
			vs.mu.Lock()
			defer vs.mu.Unlock()
			e.refs--
			if e.refs == 0 {
				delete(vs.views, key)
			}
		})
	}
}

// Len reports how many views are currently held.
func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.views)
}

// Package catalog loads categories and products for display. Fetch failures
// degrade to empty results; they are logged but never returned to callers
// that only render.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// IndexTTL bounds how long the product index used by FindProduct is trusted.
const IndexTTL = 5 * time.Minute

// sharedFetchTimeout bounds a backend fetch shared by several callers.
const sharedFetchTimeout = 10 * time.Second

var ErrProductNotFound = errors.New("product not found")

// Filter selects products by category slug and free-text query.
type Filter = backend.ProductFilter

// Source is the subset of the backend API the loader reads.
type Source interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	Products(ctx context.Context, filter backend.ProductFilter) ([]domain.Product, error)
}

type productIndex struct {
	byID      map[string]domain.Product
	fetchedAt time.Time
}

type Loader struct {
	source Source
	log    *zap.Logger
	sfg    singleflight.Group
	now    func() time.Time

	indexMu sync.RWMutex
	index   *productIndex
}

func NewLoader(source Source, log *zap.Logger) *Loader {
	return &Loader{
		source: source,
		log:    log,
		now:    time.Now,
	}
}

// LoadCategories returns every category, or an empty set on failure.
// Concurrent callers share one backend request.
func (l *Loader) LoadCategories(ctx context.Context) []domain.Category {
	v, err := l.shared(ctx, "categories", func(ctx context.Context) (interface{}, error) {
		return l.source.Categories(ctx)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			l.log.Warn("load categories failed", zap.Error(err))
		}
		return []domain.Category{}
	}
	return v.([]domain.Category)
}

// LoadProducts returns products matching filter, or an empty set on failure.
func (l *Loader) LoadProducts(ctx context.Context, filter Filter) []domain.Product {
	products, err := l.source.Products(ctx, filter)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			l.log.Warn("load products failed",
				zap.String("category", filter.Category),
				zap.String("query", filter.Query),
				zap.Error(err))
		}
		return []domain.Product{}
	}
	if filter == (Filter{}) {
		l.storeIndex(products)
	}
	return products
}

// shared runs fn once for all concurrent callers of key. fn runs detached
// from the caller that started it, so one caller leaving does not fail the
// others; each caller still stops waiting when its own ctx is done.
func (l *Loader) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := l.sfg.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// FindProduct resolves a product by id from the unfiltered catalog,
// refreshing the index once when the id is unknown or the index is stale.
func (l *Loader) FindProduct(ctx context.Context, id string) (domain.Product, error) {
	if p, ok := l.lookup(id, true); ok {
		return p, nil
	}

	_, err := l.shared(ctx, "product-index", func(ctx context.Context) (interface{}, error) {
		products, err := l.source.Products(ctx, Filter{})
		if err != nil {
			return nil, err
		}
		l.storeIndex(products)
		return nil, nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("refresh product index: %w", err)
	}

	if p, ok := l.lookup(id, false); ok {
		return p, nil
	}
	return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

func (l *Loader) lookup(id string, requireFresh bool) (domain.Product, bool) {
	l.indexMu.RLock()
	defer l.indexMu.RUnlock()
	if l.index == nil {
		return domain.Product{}, false
	}
	if requireFresh && l.now().Sub(l.index.fetchedAt) >= IndexTTL {
		return domain.Product{}, false
	}
	p, ok := l.index.byID[id]
	return p, ok
}

func (l *Loader) storeIndex(products []domain.Product) {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	l.indexMu.Lock()
	l.index = &productIndex{byID: byID, fetchedAt: l.now()}
	l.indexMu.Unlock()
}

// InvalidateIndex forgets the product index, e.g. after seeding.
func (l *Loader) InvalidateIndex() {
	l.indexMu.Lock()
	l.index = nil
	l.indexMu.Unlock()
}

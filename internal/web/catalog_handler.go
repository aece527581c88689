package web

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Seeder populates the backend with sample data.
type Seeder interface {
	Seed(ctx context.Context) error
}

type CatalogHandler struct {
	loader  *catalog.Loader
	views   *catalog.Views
	seeder  Seeder
	timeout time.Duration
}

func NewCatalogHandler(loader *catalog.Loader, seeder Seeder, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		loader:  loader,
		views:   catalog.NewViews(loader),
		seeder:  seeder,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Category string           `json:"category,omitempty"`
	Query    string           `json:"q,omitempty"`
	Products []domain.Product `json:"products"`
}

// GET /api/v1/catalog/categories
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, h.loader.LoadCategories(ctx))
}

// GET /api/v1/catalog/products?category=&q=
//
// Requests from one session share a catalog view: a request overtaken by a
// newer one from the same session answers 409.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sid, ok := getSessionID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	filter := catalog.Filter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	view, release := h.views.Acquire(sid.String())
	defer release()

	products, err := view.Request(ctx, filter)
	if err != nil {
		handleBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Category: filter.Category, Query: filter.Query, Products: products})
}

// POST /api/v1/seed
func (h *CatalogHandler) Seed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.seeder.Seed(ctx); err != nil {
		handleBackendError(w, err)
		return
	}
	h.loader.InvalidateIndex()
	respondJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

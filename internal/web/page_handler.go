package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/web/views"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageHandler serves the HTML shop. Form posts redirect back to the shop
// page with the same filter and leave a one-shot notice.
type PageHandler struct {
	catalog   *catalog.Loader
	carts     *cart.Synchronizer
	invoker   *checkout.Invoker
	seeder    Seeder
	storeName string
	timeout   time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewPageHandler(loader *catalog.Loader, carts *cart.Synchronizer, invoker *checkout.Invoker, seeder Seeder, storeName string, timeout time.Duration, log *zap.Logger) *PageHandler {
	return &PageHandler{
		catalog:   loader,
		carts:     carts,
		invoker:   invoker,
		seeder:    seeder,
		storeName: storeName,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

func formFilter(r *http.Request) views.Filter {
	return views.Filter{Category: r.FormValue("category"), Query: r.FormValue("q")}
}

// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sid, ok := getSessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return
	}

	filter := views.Filter{Category: r.URL.Query().Get("category"), Query: r.URL.Query().Get("q")}
	data := views.PageData{
		StoreName: h.storeName,
		Year:      h.now().Year(),
		Filter:    filter,
		Notice:    popFlash(w, r),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data.Categories = h.catalog.LoadCategories(gctx)
		return nil
	})
	g.Go(func() error {
		data.Products = h.catalog.LoadProducts(gctx, catalog.Filter{Category: filter.Category, Query: filter.Query})
		return nil
	})
	g.Go(func() error {
		data.Cart = h.carts.Load(gctx, sid)
		return nil
	})
	if err := g.Wait(); err != nil {
		h.log.Error("render shop page", zap.Error(err))
	}

	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(views.Page(data)).ServeHTTP(w, r)
}

// POST /cart/items
func (h *PageHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, sid session.ID) *views.Notice {
		product, err := h.catalog.FindProduct(ctx, r.FormValue("product_id"))
		if errors.Is(err, catalog.ErrProductNotFound) {
			return errorNotice("That product is no longer available.")
		}
		if err != nil {
			return h.cartFailure(err)
		}
		if _, err := h.carts.Add(ctx, sid, product); err != nil {
			return h.cartFailure(err)
		}
		return nil
	})
}

// POST /cart/items/{id}/quantity
func (h *PageHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, sid session.ID) *views.Notice {
		qty, err := strconv.Atoi(r.FormValue("quantity"))
		if err != nil {
			return errorNotice("Quantity must be a number.")
		}
		if _, err := h.carts.SetQuantity(ctx, sid, chi.URLParam(r, "id"), qty); err != nil {
			return h.cartFailure(err)
		}
		return nil
	})
}

// POST /cart/items/{id}/remove
func (h *PageHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, sid session.ID) *views.Notice {
		if _, err := h.carts.Remove(ctx, sid, chi.URLParam(r, "id")); err != nil {
			return h.cartFailure(err)
		}
		return nil
	})
}

// POST /checkout
func (h *PageHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, sid session.ID) *views.Notice {
		order, err := h.invoker.Checkout(ctx, sid)
		if err != nil {
			return checkoutNotice(err)
		}
		return &views.Notice{Kind: views.NoticeSuccess, Text: "Order placed! ID: " + order.ID}
	})
}

// POST /seed
func (h *PageHandler) Seed(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, _ session.ID) *views.Notice {
		if err := h.seeder.Seed(ctx); err != nil {
			h.log.Warn("seed failed", zap.Error(err))
			return errorNotice("Could not load sample data.")
		}
		h.catalog.InvalidateIndex()
		return &views.Notice{Kind: views.NoticeSuccess, Text: "Sample data loaded."}
	})
}

func (h *PageHandler) withSession(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, sid session.ID) *views.Notice) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sid, ok := getSessionID(r)
	if !ok {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if n := action(ctx, sid); n != nil {
		setFlash(w, *n)
	}
	http.Redirect(w, r, formFilter(r).HomeURL(), http.StatusSeeOther)
}

func (h *PageHandler) cartFailure(err error) *views.Notice {
	h.log.Warn("cart update failed", zap.Error(err))
	_, resp := errorResponse(err)
	if resp.Details != "" {
		return errorNotice("Could not update cart: " + resp.Details)
	}
	return errorNotice("Could not update cart. Please try again.")
}

func checkoutNotice(err error) *views.Notice {
	if errors.Is(err, checkout.ErrEmptyCart) {
		return errorNotice("Your cart is empty.")
	}
	var checkoutErr *checkout.Error
	if errors.As(err, &checkoutErr) {
		return errorNotice(checkoutErr.Message())
	}
	return errorNotice("Checkout failed: " + checkout.UnknownDetail)
}

func errorNotice(text string) *views.Notice {
	return &views.Notice{Kind: views.NoticeError, Text: text}
}

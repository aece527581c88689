// Package web is the storefront's HTTP transport: the HTML shop, a JSON API
// under /api/v1 and a health check.
package web

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/web/views"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Catalog  *catalog.Loader
	Carts    *cart.Synchronizer
	Checkout *checkout.Invoker
	Seeder   Seeder
	Log      *zap.Logger

	StoreName          string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	CORSAllowedOrigins []string
	CookieSecure       bool
}

// NewRouter assembles the storefront routes and middleware.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	catalogHandler := NewCatalogHandler(d.Catalog, d.Seeder, d.RequestTimeout)
	cartHandler := NewCartHandler(d.Carts, d.Catalog, d.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(d.Checkout, d.RequestTimeout)
	pageHandler := NewPageHandler(d.Catalog, d.Carts, d.Checkout, d.Seeder, d.StoreName, d.RequestTimeout, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout + time.Second))
	r.Use(middleware.Compress(5))
	if d.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(d.MaxRequestBodySize))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	static, _ := fs.Sub(views.Static, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(d.CookieSecure, log))

		r.Get("/", pageHandler.Home)
		r.Post("/cart/items", pageHandler.AddItem)
		r.Post("/cart/items/{id}/quantity", pageHandler.UpdateQuantity)
		r.Post("/cart/items/{id}/remove", pageHandler.RemoveItem)
		r.Post("/checkout", pageHandler.Checkout)
		r.Post("/seed", pageHandler.Seed)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: !allowsAnyOrigin(d.CORSAllowedOrigins),
			MaxAge:           300,
		}))
		r.Use(SessionMiddleware(d.CookieSecure, log))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", catalogHandler.Categories)
			r.Get("/products", catalogHandler.Products)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Post("/seed", catalogHandler.Seed)
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// allowsAnyOrigin reports a wildcard origin list. Browsers reject credentialed
// responses carrying "Access-Control-Allow-Origin: *", so the session cookie
// is only offered cross-origin to explicitly listed origins.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Package backendtest provides an in-memory stand-in for the storefront
// backend API, served over httptest.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// Server implements GET /categories, GET /products, GET /cart/{id},
// POST /cart, POST /checkout and POST /seed. The subtotal it returns is
// computed from the item prices, as a real backend would.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	categories []domain.Category
	products   map[string][]domain.Product // category slug -> products
	carts      map[string]domain.Cart
	requests   []Request

	checkoutDetail   string
	subtotalOverride *float64
	failCart         bool
}

// Request records a call made against the fake.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		products: map[string][]domain.Product{},
		carts:    map[string]domain.Cart{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /products", s.handleProducts)
	mux.HandleFunc("GET /cart/{session_id}", s.handleGetCart)
	mux.HandleFunc("POST /cart", s.handleReplaceCart)
	mux.HandleFunc("POST /checkout", s.handleCheckout)
	mux.HandleFunc("POST /seed", s.handleSeed)
	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Seed loads the fixture catalog used across tests.
func (s *Server) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedLocked()
}

// AddProduct registers a product under a category slug.
func (s *Server) AddProduct(categorySlug string, p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[categorySlug] = append(s.products[categorySlug], p)
}

// FailCheckout makes checkout answer 400 with detail. An empty detail
// restores normal behavior.
func (s *Server) FailCheckout(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkoutDetail = detail
}

// OverrideSubtotal makes POST /cart report subtotal instead of the computed
// value.
func (s *Server) OverrideSubtotal(subtotal float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subtotalOverride = &subtotal
}

// FailCart toggles 500 answers for POST /cart.
func (s *Server) FailCart(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCart = fail
}

// CartFor returns the backend copy of a session cart.
func (s *Server) CartFor(sessionID string) (domain.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[sessionID]
	return c, ok
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request matching method and path.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			buf := new(strings.Builder)
			_, _ = copyBody(buf, r)
			body = []byte(buf.String())
			r.Body = readCloser(body)
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	categories := append([]domain.Category{}, s.categories...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	query := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	for slug, products := range s.products {
		if category != "" && slug != category {
			continue
		}
		for _, p := range products {
			if query != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Description), query) {
				continue
			}
			out = append(out, p)
		}
	}
	sortProducts(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	s.mu.Lock()
	c, ok := s.carts[id]
	s.mu.Unlock()
	if !ok {
		c = domain.EmptyCart(id)
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleReplaceCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string            `json:"session_id"`
		Items     []domain.CartItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCart {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "cart store down"})
		return
	}
	subtotal := 0.0
	for _, item := range req.Items {
		subtotal += item.Price * float64(item.Quantity)
	}
	if s.subtotalOverride != nil {
		subtotal = *s.subtotalOverride
	}
	s.carts[req.SessionID] = domain.Cart{SessionID: req.SessionID, Items: req.Items, Subtotal: subtotal}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": req.SessionID, "items": req.Items, "subtotal": subtotal})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string          `json:"session_id"`
		Customer  domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkoutDetail != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": s.checkoutDetail})
		return
	}
	c, ok := s.carts[req.SessionID]
	if !ok || len(c.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Cart is empty"})
		return
	}
	delete(s.carts, req.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{"order_id": uuid.NewString()})
}

func (s *Server) handleSeed(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.seedLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (s *Server) seedLocked() {
	compare := 14.99
	s.categories = []domain.Category{
		{ID: "c1", Slug: "home", Name: "Home"},
		{ID: "c2", Slug: "toys", Name: "Toys"},
	}
	s.products = map[string][]domain.Product{
		"home": {
			{ID: "p1", Title: "Widget", Description: "A useful widget", Price: 9.99, CompareAtPrice: &compare, Images: []string{"https://img.example.com/widget.jpg"}},
			{ID: "p2", Title: "Lamp", Description: "Warm light", Price: 25.5, Images: []string{"https://img.example.com/lamp.jpg", "https://img.example.com/lamp-2.jpg"}},
		},
		"toys": {
			{ID: "p3", Title: "Yo-yo", Description: "Classic toy", Price: 3.25},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

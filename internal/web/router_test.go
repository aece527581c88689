package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/backend/backendtest"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSession = "45c48cce-2e2d-4fbd-8a5a-1f0e3b6c7d8e"

type testEnv struct {
	backend *backendtest.Server
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithOrigins(t, []string{"*"})
}

func newTestEnvWithOrigins(t *testing.T, origins []string) *testEnv {
	t.Helper()
	srv := backendtest.New(t)
	srv.Seed()

	log := zaptest.NewLogger(t)
	client := backend.NewClient(srv.URL, 2*time.Second)
	loader := catalog.NewLoader(client, log)
	carts := cart.NewSynchronizer(client, cart.NewMemoryStore(), log)
	invoker := checkout.NewInvoker(client, carts, domain.GuestCustomer(), log)

	router := NewRouter(Deps{
		Catalog:            loader,
		Carts:              carts,
		Checkout:           invoker,
		Seeder:             client,
		Log:                log,
		StoreName:          "Flames Department Store",
		RequestTimeout:     2 * time.Second,
		MaxRequestBodySize: 1 << 20,
		CORSAllowedOrigins: origins,
	})
	return &testEnv{backend: srv, router: router}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testSession})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		cookie    string
		wantIssue bool
	}{
		{"missing cookie issues one", "", true},
		{"valid cookie kept", testSession, false},
		{"invalid cookie replaced", "not-a-uuid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var issued *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == sessionCookieName {
					issued = c
				}
			}
			if !tt.wantIssue {
				assert.Nil(t, issued)
				return
			}
			require.NotNil(t, issued)
			assert.NotEqual(t, tt.cookie, issued.Value)
			assert.True(t, issued.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, issued.SameSite)
			assert.Equal(t, sessionCookieAge, issued.MaxAge)
		})
	}
}

func TestCatalogAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/catalog/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []domain.Category
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&categories))
	assert.Len(t, categories, 2)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/products?category=toys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products ProductsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&products))
	assert.Equal(t, "toys", products.Category)
	require.Len(t, products.Products, 1)
	assert.Equal(t, "p3", products.Products[0].ID)

	last, ok := env.backend.LastRequest(http.MethodGet, "/products")
	require.True(t, ok)
	assert.Equal(t, "category=toys", last.Query)
}

func TestCartAPI_AddUpdateRemove(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "p1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	require.Len(t, c.Items, 1)
	assert.Equal(t, domain.CartItem{ProductID: "p1", Title: "Widget", Price: 9.99, Image: "https://img.example.com/widget.jpg", Quantity: 1}, c.Items[0])
	assert.InDelta(t, 9.99, c.Subtotal, 1e-9)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/p1", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.Equal(t, 1, c.Items[0].Quantity, "quantity is clamped to one")

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/p1", UpdateQuantityRequestDTO{Quantity: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.InDelta(t, 4*9.99, c.Subtotal, 1e-9)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart/items/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.Empty(t, c.Items)

	remote, ok := env.backend.CartFor(testSession)
	require.True(t, ok)
	assert.Empty(t, remote.Items)
}

func TestCartAPI_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"invalid json", http.MethodPost, "/api/v1/cart/items", "{", http.StatusBadRequest, "invalid_request"},
		{"empty product id", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "  "}, http.StatusBadRequest, "invalid_product_id"},
		{"unknown product", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "nope"}, http.StatusNotFound, "product_not_found"},
		{"invalid quantity body", http.MethodPut, "/api/v1/cart/items/p1", `{"quantity":"many"}`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestCartAPI_BackendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.FailCart(true)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "p1"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "backend_error", resp.Code)
	assert.Equal(t, "cart store down", resp.Details)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.Empty(t, c.Items, "failed mutation must not be adopted")
}

func TestCheckoutAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "p2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	env.backend.FailCheckout("out of stock")
	rec = env.do(t, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "backend_rejected", resp.Code)
	assert.Equal(t, "out of stock", resp.Details)
	assert.Equal(t, "Checkout failed: out of stock", resp.Error)

	env.backend.FailCheckout("")
	rec = env.do(t, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var order CheckoutResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&order))
	assert.NotEmpty(t, order.OrderID)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil)
	var c domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.Empty(t, c.Items)
	assert.Equal(t, 0.0, c.Subtotal)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), "wildcard origins must not allow credentials")
}

func TestCORSPreflight_ExplicitOriginAllowsCredentials(t *testing.T) {
	env := newTestEnvWithOrigins(t, []string{"http://localhost:5173"})

	tests := []struct {
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{"http://localhost:5173", "http://localhost:5173", "true"},
		{"http://evil.example.com", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestShopPage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/?category=home", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "<h1><a href=\"/\">Flames Department Store</a></h1>")
	assert.Contains(t, body, `<a class="category active" href="/?category=home">Home</a>`)
	assert.Contains(t, body, "Widget")
	assert.Contains(t, body, "Lamp")
	assert.NotContains(t, body, "Yo-yo")
	assert.Contains(t, body, `class="btn btn-checkout" disabled>`)
}

func TestShopPage_NoProducts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/?q=nothing-matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No products found.")
}

func postForm(t *testing.T, env *testEnv, target, form string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testSession})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func flashCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge > 0 {
			return c
		}
	}
	return nil
}

func TestShopForms_AddThenCheckout(t *testing.T) {
	env := newTestEnv(t)

	rec := postForm(t, env, "/cart/items", "product_id=p1&category=home")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?category=home", rec.Header().Get("Location"))
	assert.Nil(t, flashCookie(rec), "successful add leaves no notice")

	rec = postForm(t, env, "/cart/items/p1/quantity", "quantity=3")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := env.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, page.Body.String(), `<span class="badge">3</span>`)
	assert.Contains(t, page.Body.String(), "Subtotal: $29.97")

	rec = postForm(t, env, "/checkout", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	flash := flashCookie(rec)
	require.NotNil(t, flash)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testSession})
	req.AddCookie(flash)
	page = httptest.NewRecorder()
	env.router.ServeHTTP(page, req)

	body := page.Body.String()
	assert.Contains(t, body, `<div class="notice notice-success" role="alert">Order placed! ID: `)
	assert.Contains(t, body, "Items: 0")
}

func TestShopForms_CheckoutFailureNotice(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusSeeOther, postForm(t, env, "/cart/items", "product_id=p2").Code)

	env.backend.FailCheckout("out of stock")
	rec := postForm(t, env, "/checkout", "q=lamp")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?q=lamp", rec.Header().Get("Location"))

	flash := flashCookie(rec)
	require.NotNil(t, flash)
	req := httptest.NewRequest(http.MethodGet, "/?q=lamp", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testSession})
	req.AddCookie(flash)
	page := httptest.NewRecorder()
	env.router.ServeHTTP(page, req)

	body := page.Body.String()
	assert.Contains(t, body, "Checkout failed: out of stock")
	assert.Contains(t, body, "Items: 1")
}

func TestShopForms_UnknownProductNotice(t *testing.T) {
	env := newTestEnv(t)

	rec := postForm(t, env, "/cart/items", "product_id=missing")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	flash := flashCookie(rec)
	require.NotNil(t, flash)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testSession})
	req.AddCookie(flash)
	page := httptest.NewRecorder()
	env.router.ServeHTTP(page, req)
	assert.Contains(t, page.Body.String(), "That product is no longer available.")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/static/styles.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".product-card")
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 4 << 20

// ProductFilter narrows GET /products. Empty fields are not sent.
type ProductFilter struct {
	Category string
	Query    string
}

// Values encodes the filter as query parameters.
func (f ProductFilter) Values() url.Values {
	params := url.Values{}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if f.Query != "" {
		params.Set("q", f.Query)
	}
	return params
}

// ReplaceResult is the backend answer to POST /cart.
type ReplaceResult struct {
	Subtotal float64 `json:"subtotal"`
}

type replaceCartRequest struct {
	SessionID string            `json:"session_id"`
	Items     []domain.CartItem `json:"items"`
}

type checkoutRequest struct {
	SessionID string          `json:"session_id"`
	Customer  domain.Customer `json:"customer"`
}

type checkoutResponse struct {
	OrderID string          `json:"order_id"`
	Detail  json.RawMessage `json:"detail"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type exchange struct {
	status int
	body   []byte
}

// Client talks to the storefront backend API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*exchange]
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[*exchange](st)
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[*exchange](DefaultBreakerSettings("storefront-backend")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.getJSON(ctx, "list categories", "/categories", &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

func (c *Client) Products(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	path := "/products"
	if params := filter.Values(); len(params) > 0 {
		path += "?" + params.Encode()
	}
	var products []domain.Product
	if err := c.getJSON(ctx, "list products", path, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (c *Client) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	var cart domain.Cart
	if err := c.getJSON(ctx, "get cart", "/cart/"+url.PathEscape(sessionID), &cart); err != nil {
		return domain.Cart{}, err
	}
	if cart.SessionID == "" {
		cart.SessionID = sessionID
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart, nil
}

// ReplaceCart sends the complete desired item list for a session.
func (c *Client) ReplaceCart(ctx context.Context, sessionID string, items []domain.CartItem) (ReplaceResult, error) {
	const op = "replace cart"
	if items == nil {
		items = []domain.CartItem{}
	}
	ex, err := c.send(ctx, op, http.MethodPost, "/cart", replaceCartRequest{SessionID: sessionID, Items: items})
	if err != nil {
		return ReplaceResult{}, err
	}
	if err := statusError(op, ex); err != nil {
		return ReplaceResult{}, err
	}
	var res ReplaceResult
	if err := json.Unmarshal(ex.body, &res); err != nil {
		return ReplaceResult{}, &DecodeError{Op: op, Err: err}
	}
	return res, nil
}

// Checkout places an order. A response without order_id is an APIError even
// when the status is 2xx.
func (c *Client) Checkout(ctx context.Context, sessionID string, customer domain.Customer) (domain.Order, error) {
	const op = "checkout"
	ex, err := c.send(ctx, op, http.MethodPost, "/checkout", checkoutRequest{SessionID: sessionID, Customer: customer})
	if err != nil {
		return domain.Order{}, err
	}
	var res checkoutResponse
	if len(bytes.TrimSpace(ex.body)) > 0 {
		if err := json.Unmarshal(ex.body, &res); err != nil && isSuccess(ex.status) {
			return domain.Order{}, &DecodeError{Op: op, Err: err}
		}
	}
	if res.OrderID != "" && isSuccess(ex.status) {
		return domain.Order{ID: res.OrderID}, nil
	}
	return domain.Order{}, &APIError{Op: op, Status: ex.status, Detail: detailText(res.Detail)}
}

// Seed asks the backend to populate sample data.
func (c *Client) Seed(ctx context.Context) error {
	const op = "seed"
	ex, err := c.send(ctx, op, http.MethodPost, "/seed", nil)
	if err != nil {
		return err
	}
	return statusError(op, ex)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	ex, err := c.send(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := statusError(op, ex); err != nil {
		return err
	}
	if err := json.Unmarshal(ex.body, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) (*exchange, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = encoded
	}

	ex, err := c.breaker.Execute(func() (*exchange, error) {
		return c.roundTrip(ctx, op, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// 5xx responses count against the breaker but are still responses.
		return ex, nil
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte) (*exchange, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	ex := &exchange{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		return ex, &APIError{Op: op, Status: resp.StatusCode}
	}
	return ex, nil
}

func statusError(op string, ex *exchange) error {
	if isSuccess(ex.status) {
		return nil
	}
	var eb errorBody
	_ = json.Unmarshal(ex.body, &eb)
	return &APIError{Op: op, Status: ex.status, Detail: detailText(eb.Detail)}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// detailText flattens a detail field that may be a string or structured JSON.
func detailText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

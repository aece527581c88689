package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	backend     *backendtest.Server
	sessionFile string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	srv := backendtest.New(t)
	srv.Seed()
	return &cli{backend: srv, sessionFile: filepath.Join(t.TempDir(), "session.yaml")}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--backend", c.backend.URL, "--session-file", c.sessionFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCategoriesAndProducts(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "home")
	assert.Contains(t, out, "Toys")

	out, err = c.run(t, "products", "--category", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "$14.99")
	assert.NotContains(t, out, "Yo-yo")

	out, err = c.run(t, "products", "-q", "nothing-matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No products found.")
}

func TestSessionPersistsAcrossRuns(t *testing.T) {
	c := newCLI(t)

	first, err := c.run(t, "session")
	require.NoError(t, err)
	second, err := c.run(t, "session")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, c.sessionFile)

	data, err := os.ReadFile(c.sessionFile)
	require.NoError(t, err)
	assert.Contains(t, first, strings.TrimSpace(strings.TrimPrefix(string(data), "session_id:")))
}

func TestCartFlow(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "cart", "add", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Items: 1")
	assert.Contains(t, out, "Subtotal: $9.99")

	_, err = c.run(t, "cart", "add", "p3")
	require.NoError(t, err)

	out, err = c.run(t, "cart", "qty", "p1", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Items: 4")
	assert.Contains(t, out, "Subtotal: $33.22")

	out, err = c.run(t, "cart", "remove", "p3")
	require.NoError(t, err)
	assert.Contains(t, out, "Items: 3")

	out, err = c.run(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "Subtotal: $29.97")
}

func TestCartErrors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "cart", "add", "missing")
	assert.ErrorContains(t, err, "product not found")

	_, err = c.run(t, "cart", "qty", "p1", "lots")
	assert.ErrorContains(t, err, "quantity must be a number")

	c.backend.FailCart(true)
	_, err = c.run(t, "cart", "add", "p1")
	assert.ErrorContains(t, err, "could not update cart")
}

func TestCheckout(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "checkout")
	assert.EqualError(t, err, "your cart is empty")

	_, err = c.run(t, "cart", "add", "p2")
	require.NoError(t, err)

	c.backend.FailCheckout("out of stock")
	_, err = c.run(t, "checkout")
	assert.EqualError(t, err, "Checkout failed: out of stock")

	c.backend.FailCheckout("")
	out, err := c.run(t, "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Order placed! ID: ")

	out, err = c.run(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty.")
}

func TestSeed(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Sample data loaded.")

	_, ok := c.backend.LastRequest("POST", "/seed")
	assert.True(t, ok)
}

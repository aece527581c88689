package backendtest

import (
	"bytes"
	"io"
	"net/http"
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func copyBody(dst io.Writer, r *http.Request) (int64, error) {
	defer r.Body.Close()
	return io.Copy(dst, r.Body)
}

func readCloser(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

func sortProducts(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID < products[j].ID
	})
}

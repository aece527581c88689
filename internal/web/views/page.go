package views

import "github.com/fjod/go_cart/storefront/internal/domain"

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a one-shot message shown above the catalog.
type Notice struct {
	Kind NoticeKind
	Text string
}

// PageData is everything the shop page displays.
type PageData struct {
	StoreName  string
	Year       int
	Filter     Filter
	Categories []domain.Category
	Products   []domain.Product
	Cart       domain.Cart
	Notice     *Notice
}

// PlaceholderImage is shown for products without images.
const PlaceholderImage = "https://via.placeholder.com/600x600?text=Product"

func cardImage(p domain.Product) string {
	if image := p.PrimaryImage(); image != "" {
		return image
	}
	return PlaceholderImage
}

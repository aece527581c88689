package cart

import "github.com/fjod/go_cart/storefront/internal/domain"

// AddLine returns items with one more unit of p: an existing line is
// incremented, otherwise a new line captures p's title, price and first
// image with quantity 1.
func AddLine(items []domain.CartItem, p domain.Product) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items)+1)
	found := false
	for _, item := range items {
		if item.ProductID == p.ID {
			item.Quantity++
			found = true
		}
		out = append(out, item)
	}
	if !found {
		out = append(out, domain.CartItem{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Image:     p.PrimaryImage(),
			Quantity:  1,
		})
	}
	return out
}

// SetLineQuantity replaces the quantity of productID's line. Quantities below
// one are clamped to one; an unknown productID leaves the list as it was.
func SetLineQuantity(items []domain.CartItem, productID string, qty int) []domain.CartItem {
	if qty < 1 {
		qty = 1
	}
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == productID {
			item.Quantity = qty
		}
		out = append(out, item)
	}
	return out
}

// RemoveLine drops productID's line.
func RemoveLine(items []domain.CartItem, productID string) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.ProductID != productID {
			out = append(out, item)
		}
	}
	return out
}

// HasLine reports whether productID is in items.
func HasLine(items []domain.CartItem, productID string) bool {
	for _, item := range items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

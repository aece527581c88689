package domain

// Cart mirrors the backend cart of one session. Items are kept exactly as
// they were last sent upstream; Subtotal is only ever assigned from a
// backend response.
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	Subtotal  float64    `json:"subtotal"`
	// Version is bumped locally each time a new state is adopted.
	Version int64 `json:"version,omitempty"`
}

// CartItem carries the product fields captured when the line was created.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// EmptyCart returns the zero state for a session.
func EmptyCart(sessionID string) Cart {
	return Cart{
		SessionID: sessionID,
		Items:     []CartItem{},
		Subtotal:  0,
	}
}

// TotalQuantity sums the quantities of all lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// IsEmpty reports whether there is nothing to check out.
func (c Cart) IsEmpty() bool {
	return c.TotalQuantity() == 0
}

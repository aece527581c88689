package domain

// Customer is the shipping profile submitted with a checkout.
type Customer struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	AddressLine1 string `json:"address_line1"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// GuestCustomer is the placeholder profile used when the shopper has not
// provided one.
func GuestCustomer() Customer {
	return Customer{
		Name:         "Guest User",
		Email:        "guest@example.com",
		AddressLine1: "123 Main St",
		City:         "Springfield",
		State:        "CA",
		PostalCode:   "90001",
		Country:      "US",
	}
}

type Order struct {
	ID string `json:"order_id"`
}

package models

import "time"

type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductInactive   ProductStatus = "inactive"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductInactive, ProductOutOfStock:
		return true
	}
	return false
}

type Product struct {
	ProductID     int           `json:"product_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	Price         float64       `json:"price"`
	UnitPrice     float64       `json:"unit_price"`
	StockQuantity int           `json:"stock_quantity"`
	Status        ProductStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Customer struct {
	CustomerID   int       `json:"customer_id"`
	Name         string    `json:"name" validate:"required,min=2,max=150"`
	Email        string    `json:"email" validate:"required,email"`
	PhoneNumber  string    `json:"phone_number" validate:"omitempty,e164"`
	Address      string    `json:"address"`
	Token        string    `json:"-"`
	RegisteredAt time.Time `json:"registered_at"`
}

// CartLine is one (customer, product) pairing with the price captured when
// the product was first added. Adding the same product again merges into
// quantity; price_at_addition never changes after the first add.
type CartLine struct {
	CartLineID      int       `json:"cart_line_id"`
	CustomerID      int       `json:"customer_id"`
	ProductID       int       `json:"product_id"`
	Quantity        int       `json:"quantity"`
	PriceAtAddition float64   `json:"price_at_addition"`
	AddedAt         time.Time `json:"added_at"`
}

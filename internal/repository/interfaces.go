package repository

import (
	"context"

	"marketplace/internal/models"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id int) (*models.Product, error)
	GetAll(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id int) error

	GetByCategory(ctx context.Context, category string) ([]models.Product, error)
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id int) (*models.Customer, error)
	GetByToken(ctx context.Context, token string) (*models.Customer, error)
}

type CartRepository interface {
	// AddLine merges quantity into an existing (customer, product) line or
	// creates one, snapshotting the product's current price on first add.
	AddLine(ctx context.Context, customerID, productID, quantity int) (*models.CartLine, error)
	GetLines(ctx context.Context, customerID int) ([]models.CartLine, error)
	RemoveLine(ctx context.Context, customerID, productID int) error
	Clear(ctx context.Context, customerID int) error
}

// Orders are only ever created through the checkout engine; this repository
// covers the read model and post-checkout status transitions.
type OrderRepository interface {
	GetByID(ctx context.Context, id int) (*models.Order, error)
	GetWithLines(ctx context.Context, id int) (*models.Order, []models.OrderLine, error)
	GetByCustomerID(ctx context.Context, customerID int) ([]models.Order, error)
	GetPayment(ctx context.Context, orderID int) (*models.Payment, error)
	GetShipment(ctx context.Context, orderID int) (*models.Shipment, error)
	UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
	UpdateDeliveryStatus(ctx context.Context, id int, status models.DeliveryStatus) error
}

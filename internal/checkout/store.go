package checkout

import (
	"context"

	"marketplace/internal/models"
)

// ProductState is the locked view of a product taken at the start of a
// checkout. While the transaction holds the row lock, no concurrent checkout
// can move the stock counter.
type ProductState struct {
	ProductID     int
	StockQuantity int
	Status        models.ProductStatus
}

// Tx is the set of store operations available inside a single checkout
// transaction. Every mutation made through it commits or rolls back as one
// unit with the others.
type Tx interface {
	// CartLines reads the customer's cart lines in a stable order.
	CartLines(ctx context.Context, customerID int) ([]models.CartLine, error)

	// LockProducts takes exclusive row locks on the given products and
	// returns their live stock and status. Callers pass product IDs in
	// ascending order so concurrent checkouts acquire locks in the same
	// sequence and cannot deadlock.
	LockProducts(ctx context.Context, productIDs []int) (map[int]ProductState, error)

	InsertOrder(ctx context.Context, order *models.Order) (int, error)
	InsertOrderLine(ctx context.Context, line *models.OrderLine) error

	// ReserveStock decrements stock for a locked product, flipping it to
	// out_of_stock in the same operation when the counter reaches zero.
	ReserveStock(ctx context.Context, productID, quantity int) error

	// InsertPayment and InsertShipment return repository.ErrDuplicate when
	// the reference collides with an existing row, leaving the rest of the
	// transaction intact so the caller can retry with a fresh reference.
	InsertPayment(ctx context.Context, payment *models.Payment) error
	InsertShipment(ctx context.Context, shipment *models.Shipment) error

	ClearCart(ctx context.Context, customerID int) error
}

// Store opens the transactional scope a checkout runs in. If fn returns an
// error the transaction is rolled back and no effect of the checkout is
// observable.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

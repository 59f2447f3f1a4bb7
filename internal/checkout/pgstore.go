package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/inventory"
	"marketplace/internal/models"
	"marketplace/internal/repository"
)

// PGStore runs checkouts against Postgres. Serialization of concurrent
// checkouts on the same products comes from SELECT ... FOR UPDATE row locks
// held for the rest of the transaction.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit checkout transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CartLines(ctx context.Context, customerID int) ([]models.CartLine, error) {
	sql := `
		SELECT
		cart_item_id,
		customer_id,
		product_id,
		quantity,
		price_at_addition,
		added_at
		FROM cart_items
		WHERE customer_id = $1
		ORDER BY cart_item_id
	`

	rows, err := t.tx.Query(ctx, sql, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var l models.CartLine
		err := rows.Scan(
			&l.CartLineID,
			&l.CustomerID,
			&l.ProductID,
			&l.Quantity,
			&l.PriceAtAddition,
			&l.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return lines, nil
}

func (t *pgTx) LockProducts(ctx context.Context, productIDs []int) (map[int]ProductState, error) {
	// ORDER BY product_id makes every checkout acquire row locks in the
	// same sequence.
	sql := `
		SELECT product_id, stock_quantity, status
		FROM products
		WHERE product_id = ANY($1::int[])
		ORDER BY product_id
		FOR UPDATE
	`

	rows, err := t.tx.Query(ctx, sql, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	states := make(map[int]ProductState, len(productIDs))
	for rows.Next() {
		var p ProductState
		if err := rows.Scan(&p.ProductID, &p.StockQuantity, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan product state: %w", err)
		}
		states[p.ProductID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return states, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *models.Order) (int, error) {
	sql := `
		INSERT INTO orders (
			customer_id,
			order_date,
			total_amount,
			shipping_address,
			payment_status,
			delivery_status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING order_id
	`

	err := t.tx.QueryRow(ctx, sql,
		order.CustomerID,
		order.OrderDate,
		order.TotalAmount,
		order.ShippingAddress,
		order.PaymentStatus,
		order.DeliveryStatus,
	).Scan(&order.OrderID)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}

	return order.OrderID, nil
}

func (t *pgTx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	sql := `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING order_line_id
	`

	err := t.tx.QueryRow(ctx, sql,
		line.OrderID,
		line.ProductID,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
	).Scan(&line.OrderLineID)
	if err != nil {
		return fmt.Errorf("failed to create order line: %w", err)
	}

	return nil
}

func (t *pgTx) ReserveStock(ctx context.Context, productID, quantity int) error {
	return inventory.Reserve(ctx, t.tx, productID, quantity)
}

func (t *pgTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	sql := `
		INSERT INTO payments (
			order_id,
			customer_id,
			payment_date,
			amount,
			payment_method,
			transaction_id,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING payment_id
	`

	err := t.insertWithSavepoint(ctx, "transaction_id", func(sp pgx.Tx) error {
		return sp.QueryRow(ctx, sql,
			payment.OrderID,
			payment.CustomerID,
			payment.PaymentDate,
			payment.Amount,
			payment.PaymentMethod,
			payment.TransactionID,
			payment.Status,
		).Scan(&payment.PaymentID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (t *pgTx) InsertShipment(ctx context.Context, shipment *models.Shipment) error {
	sql := `
		INSERT INTO shipments (
			order_id,
			tracking_number,
			shipping_address,
			created_at
		) VALUES ($1, $2, $3, $4)
		RETURNING shipment_id
	`

	err := t.insertWithSavepoint(ctx, "tracking_number", func(sp pgx.Tx) error {
		return sp.QueryRow(ctx, sql,
			shipment.OrderID,
			shipment.TrackingNumber,
			shipment.ShippingAddress,
			shipment.CreatedAt,
		).Scan(&shipment.ShipmentID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("failed to create shipment: %w", err)
	}

	return nil
}

// insertWithSavepoint runs the insert inside a savepoint so a unique
// violation on the reference column aborts only the insert, not the whole
// checkout transaction, and the caller can retry with a fresh reference.
func (t *pgTx) insertWithSavepoint(ctx context.Context, refConstraint string, insert func(sp pgx.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := insert(sp); err != nil {
		sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			strings.Contains(pgErr.ConstraintName, refConstraint) {
			return fmt.Errorf("%w: %s collision", repository.ErrDuplicate, refConstraint)
		}
		return err
	}

	return sp.Commit(ctx)
}

func (t *pgTx) ClearCart(ctx context.Context, customerID int) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/models"
)

type orderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) GetByID(ctx context.Context, id int) (*models.Order, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: order ID must be positive", ErrInvalidInput)
	}

	sql := `
		SELECT
		order_id,
		customer_id,
		order_date,
		total_amount,
		shipping_address,
		payment_status,
		delivery_status
		FROM orders
		WHERE order_id = $1
	`

	var order models.Order
	err := r.db.QueryRow(ctx, sql, id).Scan(
		&order.OrderID,
		&order.CustomerID,
		&order.OrderDate,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.PaymentStatus,
		&order.DeliveryStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	return &order, nil
}

func (r *orderRepo) GetWithLines(ctx context.Context, id int) (*models.Order, []models.OrderLine, error) {
	if id <= 0 {
		return nil, nil, fmt.Errorf("%w: order ID must be positive", ErrInvalidInput)
	}

	sql := `
	SELECT
	o.order_id,
	o.customer_id,
	o.order_date,
	o.total_amount,
	o.shipping_address,
	o.payment_status,
	o.delivery_status,
	ol.order_line_id,
	ol.product_id,
	ol.quantity,
	ol.unit_price,
	ol.subtotal
	FROM orders o
	LEFT JOIN order_lines ol ON o.order_id = ol.order_id
	WHERE o.order_id = $1
	ORDER BY ol.order_line_id
	`

	rows, err := r.db.Query(ctx, sql, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get order with lines %d: %w", id, err)
	}
	defer rows.Close()

	var order *models.Order
	var lines []models.OrderLine

	for rows.Next() {
		var current models.Order
		var lineID, productID, quantity pgtype.Int4
		var unitPrice, subtotal pgtype.Float8

		err := rows.Scan(
			&current.OrderID,
			&current.CustomerID,
			&current.OrderDate,
			&current.TotalAmount,
			&current.ShippingAddress,
			&current.PaymentStatus,
			&current.DeliveryStatus,
			&lineID,
			&productID,
			&quantity,
			&unitPrice,
			&subtotal,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan order/line: %w", err)
		}
		if order == nil {
			order = &current
		}
		if lineID.Valid {
			lines = append(lines, models.OrderLine{
				OrderLineID: int(lineID.Int32),
				OrderID:     current.OrderID,
				ProductID:   int(productID.Int32),
				Quantity:    int(quantity.Int32),
				UnitPrice:   unitPrice.Float64,
				Subtotal:    subtotal.Float64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows iteration: %w", err)
	}

	if order == nil {
		return nil, nil, ErrNotFound
	}

	return order, lines, nil
}

func (r *orderRepo) GetByCustomerID(ctx context.Context, customerID int) ([]models.Order, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", ErrInvalidInput)
	}

	sql := `
	SELECT
	o.order_id,
	o.customer_id,
	o.order_date,
	o.total_amount,
	o.shipping_address,
	o.payment_status,
	o.delivery_status,
	p.transaction_id,
	s.tracking_number
	FROM orders o
	LEFT JOIN payments p ON o.order_id = p.order_id
	LEFT JOIN shipments s ON o.order_id = s.order_id
	WHERE o.customer_id = $1
	ORDER BY o.order_date DESC
	`

	rows, err := r.db.Query(ctx, sql, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for customer %d: %w", customerID, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var txnRef, trackRef pgtype.Text

		err := rows.Scan(
			&o.OrderID,
			&o.CustomerID,
			&o.OrderDate,
			&o.TotalAmount,
			&o.ShippingAddress,
			&o.PaymentStatus,
			&o.DeliveryStatus,
			&txnRef,
			&trackRef,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan orders: %w", err)
		}
		o.TransactionRef = txnRef.String
		o.TrackingRef = trackRef.String
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return orders, nil
}

func (r *orderRepo) GetPayment(ctx context.Context, orderID int) (*models.Payment, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: order ID must be positive", ErrInvalidInput)
	}

	sql := `
		SELECT
		payment_id,
		order_id,
		customer_id,
		payment_date,
		amount,
		payment_method,
		transaction_id,
		status
		FROM payments WHERE order_id = $1
	`

	var p models.Payment
	err := r.db.QueryRow(ctx, sql, orderID).Scan(
		&p.PaymentID,
		&p.OrderID,
		&p.CustomerID,
		&p.PaymentDate,
		&p.Amount,
		&p.PaymentMethod,
		&p.TransactionID,
		&p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment for order %d: %w", orderID, err)
	}

	return &p, nil
}

func (r *orderRepo) GetShipment(ctx context.Context, orderID int) (*models.Shipment, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: order ID must be positive", ErrInvalidInput)
	}

	sql := `
		SELECT
		shipment_id,
		order_id,
		tracking_number,
		shipping_address,
		created_at
		FROM shipments WHERE order_id = $1
	`

	var s models.Shipment
	err := r.db.QueryRow(ctx, sql, orderID).Scan(
		&s.ShipmentID,
		&s.OrderID,
		&s.TrackingNumber,
		&s.ShippingAddress,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get shipment for order %d: %w", orderID, err)
	}

	return &s, nil
}

func (r *orderRepo) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: '%s'", ErrInvalidStatus, status)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE orders SET payment_status = $1 WHERE order_id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update payment status for order %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE payments SET status = $1 WHERE order_id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update payment row for order %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *orderRepo) UpdateDeliveryStatus(ctx context.Context, id int, status models.DeliveryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: '%s'", ErrInvalidStatus, status)
	}

	result, err := r.db.Exec(ctx,
		`UPDATE orders SET delivery_status = $1 WHERE order_id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update delivery status for order %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

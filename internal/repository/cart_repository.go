package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/models"
)

type cartRepo struct {
	db *pgxpool.Pool
}

func NewCartRepository(db *pgxpool.Pool) CartRepository {
	return &cartRepo{db: db}
}

func (r *cartRepo) AddLine(ctx context.Context, customerID, productID, quantity int) (*models.CartLine, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", ErrInvalidInput)
	}
	if productID <= 0 {
		return nil, fmt.Errorf("%w: product ID must be positive", ErrInvalidInput)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var price float64
	err = tx.QueryRow(ctx, `SELECT price FROM products WHERE product_id = $1`, productID).Scan(&price)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product price: %w", err)
	}

	// One line per (customer, product): a repeated add merges quantity and
	// keeps the price snapshot from the first add.
	sql := `
		INSERT INTO cart_items (customer_id, product_id, quantity, price_at_addition, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING cart_item_id, quantity, price_at_addition, added_at
	`

	line := models.CartLine{
		CustomerID: customerID,
		ProductID:  productID,
	}
	err = tx.QueryRow(ctx, sql, customerID, productID, quantity, price, time.Now()).Scan(
		&line.CartLineID,
		&line.Quantity,
		&line.PriceAtAddition,
		&line.AddedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &line, nil
}

func (r *cartRepo) GetLines(ctx context.Context, customerID int) ([]models.CartLine, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", ErrInvalidInput)
	}

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

	rows, err := r.db.Query(ctx, sql, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines: %w", err)
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
			return nil, fmt.Errorf("failed to scan cart lines: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return lines, nil
}

func (r *cartRepo) RemoveLine(ctx context.Context, customerID, productID int) error {
	if customerID <= 0 || productID <= 0 {
		return fmt.Errorf("%w: IDs must be positive", ErrInvalidInput)
	}

	result, err := r.db.Exec(ctx,
		`DELETE FROM cart_items WHERE customer_id = $1 AND product_id = $2`,
		customerID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *cartRepo) Clear(ctx context.Context, customerID int) error {
	if customerID <= 0 {
		return fmt.Errorf("%w: customer ID must be positive", ErrInvalidInput)
	}

	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

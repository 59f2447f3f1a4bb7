// Package inventory holds the stock ledger: atomic reserve/release of product
// units. Stock can never go below zero, and a product is never observable as
// active with zero stock — the status flip happens in the same UPDATE that
// moves the counter.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

// DB is the slice of pgx used by the ledger; both pgx.Tx and *pgxpool.Pool
// satisfy it. During checkout the ledger runs on the checkout transaction,
// whose FOR UPDATE locks serialize concurrent reservations per product.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reserve holds qty units of a product for an order by decrementing its
// stock. It fails if the product is not active or has fewer than qty units.
func Reserve(ctx context.Context, db DB, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", repository.ErrInvalidInput)
	}

	sql := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1,
		    status = CASE WHEN stock_quantity - $1 = 0 THEN 'out_of_stock' ELSE status END,
		    updated_at = now()
		WHERE product_id = $2
		  AND status = 'active'
		  AND stock_quantity >= $1
	`

	result, err := db.Exec(ctx, sql, qty, productID)
	if err != nil {
		return fmt.Errorf("reserve %d units of product %d: %w", qty, productID, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// The guarded UPDATE matched nothing; look at the row to say why.
	var stock int
	var status models.ProductStatus
	err = db.QueryRow(ctx,
		`SELECT stock_quantity, status FROM products WHERE product_id = $1`,
		productID).Scan(&stock, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %d: %w", productID, repository.ErrNotFound)
		}
		return fmt.Errorf("inspect product %d: %w", productID, err)
	}
	if status != models.ProductActive {
		return fmt.Errorf("product %d has status '%s': %w", productID, status, repository.ErrProductUnavailable)
	}
	return &repository.InsufficientStockError{
		ProductID: productID,
		Requested: qty,
		Available: stock,
	}
}

// Release is the inverse of Reserve, used to compensate a failed multi-item
// checkout. Restoring stock to a sold-out product flips it back to active.
func Release(ctx context.Context, db DB, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", repository.ErrInvalidInput)
	}

	sql := `
		UPDATE products
		SET stock_quantity = stock_quantity + $1,
		    status = CASE WHEN status = 'out_of_stock' THEN 'active' ELSE status END,
		    updated_at = now()
		WHERE product_id = $2
	`

	result, err := db.Exec(ctx, sql, qty, productID)
	if err != nil {
		return fmt.Errorf("release %d units of product %d: %w", qty, productID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, repository.ErrNotFound)
	}

	return nil
}

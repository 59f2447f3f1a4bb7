package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/models"
)

type productRepo struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepo{db: db}
}

func validateProduct(p *models.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: product price must be positive", ErrInvalidInput)
	}
	if p.UnitPrice <= 0 {
		return fmt.Errorf("%w: product unit_price must be positive", ErrInvalidInput)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: product stock_quantity cannot be negative", ErrInvalidInput)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown product status '%s'", ErrInvalidStatus, p.Status)
	}
	return nil
}

// normalizeStatus keeps the status/stock invariant: zero stock is never
// observable as active, and a restock leaves out_of_stock.
func normalizeStatus(p *models.Product) {
	if p.Status == "" {
		p.Status = models.ProductActive
	}
	switch {
	case p.StockQuantity == 0 && p.Status == models.ProductActive:
		p.Status = models.ProductOutOfStock
	case p.StockQuantity > 0 && p.Status == models.ProductOutOfStock:
		p.Status = models.ProductActive
	}
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	normalizeStatus(p)

	sql := `
		INSERT INTO products (
			name,
			description,
			category,
			price,
			unit_price,
			stock_quantity,
			status,
			created_at,
			updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING product_id
	`

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := r.db.QueryRow(ctx, sql,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.UnitPrice,
		p.StockQuantity,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ProductID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

const productColumns = `
		product_id,
		name,
		description,
		category,
		price,
		unit_price,
		stock_quantity,
		status,
		created_at,
		updated_at`

func scanProduct(row pgx.Row, p *models.Product) error {
	return row.Scan(
		&p.ProductID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.UnitPrice,
		&p.StockQuantity,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *productRepo) GetByID(ctx context.Context, id int) (*models.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}

	sql := `SELECT` + productColumns + `
		FROM products WHERE product_id = $1`

	var product models.Product
	if err := scanProduct(r.db.QueryRow(ctx, sql, id), &product); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	return &product, nil
}

func (r *productRepo) GetAll(ctx context.Context) ([]models.Product, error) {
	sql := `SELECT` + productColumns + `
		FROM products
		ORDER BY product_id`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan products: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return products, nil
}

func (r *productRepo) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category cannot be empty", ErrInvalidInput)
	}

	sql := `SELECT` + productColumns + `
		FROM products WHERE category = $1
		ORDER BY product_id`

	rows, err := r.db.Query(ctx, sql, category)
	if err != nil {
		return nil, fmt.Errorf("failed to get products by category: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan products: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return products, nil
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	if p.ProductID <= 0 {
		return fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	normalizeStatus(p)

	sql := `
	UPDATE products
	SET
		name = $1,
		description = $2,
		category = $3,
		price = $4,
		unit_price = $5,
		stock_quantity = $6,
		status = $7,
		updated_at = $8
	WHERE product_id = $9
	RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, sql,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.UnitPrice,
		p.StockQuantity,
		p.Status,
		time.Now(),
		p.ProductID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update product %d: %w", p.ProductID, err)
	}

	return nil
}

func (r *productRepo) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}

	result, err := r.db.Exec(ctx, `DELETE FROM products WHERE product_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/models"
)

type customerRepo struct {
	db *pgxpool.Pool
}

var validate = validator.New()

func NewCustomerRepository(db *pgxpool.Pool) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Create(ctx context.Context, c *models.Customer) error {
	if err := validate.Struct(c); err != nil {
		var validationErr validator.ValidationErrors
		if errors.As(err, &validationErr) {
			switch validationErr[0].Field() {
			case "Email":
				return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
			case "PhoneNumber":
				return fmt.Errorf("%w: phone_number must be in E.164 format", ErrInvalidInput)
			case "Name":
				return fmt.Errorf("%w: name must be 2-150 characters", ErrInvalidInput)
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sql := `
		INSERT INTO customers (
			name,
			email,
			phone_number,
			address,
			token,
			registered_at
	) VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING customer_id
	`

	c.RegisteredAt = time.Now()

	err := r.db.QueryRow(ctx, sql,
		c.Name,
		c.Email,
		c.PhoneNumber,
		c.Address,
		c.Token,
		c.RegisteredAt,
	).Scan(&c.CustomerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return fmt.Errorf("%w: email already exists", ErrDuplicate)
			}
			return fmt.Errorf("%w: customer already exists", ErrDuplicate)
		}
		return fmt.Errorf("create customer: %w", err)
	}

	return nil
}

func (r *customerRepo) GetByID(ctx context.Context, id int) (*models.Customer, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: ID must be positive", ErrInvalidInput)
	}

	sql := `
		SELECT
		customer_id,
		name,
		email,
		phone_number,
		address,
		token,
		registered_at
		FROM customers WHERE customer_id = $1
	`

	var customer models.Customer
	err := r.db.QueryRow(ctx, sql, id).Scan(
		&customer.CustomerID,
		&customer.Name,
		&customer.Email,
		&customer.PhoneNumber,
		&customer.Address,
		&customer.Token,
		&customer.RegisteredAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}

	return &customer, nil
}

// GetByToken is the opaque-token session lookup used by the auth middleware.
func (r *customerRepo) GetByToken(ctx context.Context, token string) (*models.Customer, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidInput)
	}

	sql := `
		SELECT
		customer_id,
		name,
		email,
		phone_number,
		address,
		token,
		registered_at
		FROM customers WHERE token = $1
	`

	var customer models.Customer
	err := r.db.QueryRow(ctx, sql, token).Scan(
		&customer.CustomerID,
		&customer.Name,
		&customer.Email,
		&customer.PhoneNumber,
		&customer.Address,
		&customer.Token,
		&customer.RegisteredAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer by token: %w", err)
	}

	return &customer, nil
}

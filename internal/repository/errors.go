package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate resource")
	ErrInvalidInput = errors.New("invalid input data")

	ErrEmptyCart           = errors.New("cart is empty")
	ErrProductUnavailable  = errors.New("product is not available for ordering")
	ErrInsufficientStock   = errors.New("not enough stock available")
	ErrReferenceGeneration = errors.New("failed to generate a unique reference")
	ErrInvalidStatus       = errors.New("invalid status value")
)

// InsufficientStockError carries the requested/available figures so callers
// can tell the customer how short the stock is. Matches ErrInsufficientStock
// under errors.Is.
type InsufficientStockError struct {
	ProductID int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

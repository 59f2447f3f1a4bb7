// Package checkout places orders: it turns a customer's cart into an order
// with its lines, payment and shipment, reserves inventory, and clears the
// cart — all inside one store transaction. Either every effect commits or
// none of them does.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/refgen"
	"marketplace/internal/repository"
)

// maxRefAttempts bounds regeneration retries when a payment or shipment
// reference collides with an existing one.
const maxRefAttempts = 5

type Input struct {
	CustomerID      int
	ShippingAddress string
	PaymentMethod   string
}

type Result struct {
	OrderID        int
	TotalAmount    float64
	TransactionRef string
	TrackingRef    string

	// Lines as persisted, for event publication and cache invalidation
	// after commit.
	Lines []models.OrderLine
}

type Engine struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.CheckoutMetrics
}

func NewEngine(store Store, logger *zap.Logger, m *metrics.CheckoutMetrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger, metrics: m}
}

// Checkout places an order for the customer's current cart. Prices are the
// ones captured when each product was added to the cart, not the live
// product prices. Payment capture is synchronous: the payment is created
// already completed.
func (e *Engine) Checkout(ctx context.Context, in Input) (*Result, error) {
	if in.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", repository.ErrInvalidInput)
	}
	if in.ShippingAddress == "" {
		return nil, fmt.Errorf("%w: shipping_address is required", repository.ErrInvalidInput)
	}
	if in.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment_method is required", repository.ErrInvalidInput)
	}

	start := time.Now()
	var result *Result

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		result, err = e.place(ctx, tx, in)
		return err
	})

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		e.metrics.Observe(outcomeLabel(err), elapsed)
		e.logger.Warn("checkout failed",
			zap.Int("customer_id", in.CustomerID),
			zap.Error(err))
		return nil, err
	}

	e.metrics.Observe("success", elapsed)
	e.logger.Info("order placed",
		zap.Int("customer_id", in.CustomerID),
		zap.Int("order_id", result.OrderID),
		zap.Float64("total_amount", result.TotalAmount),
		zap.String("transaction_ref", result.TransactionRef),
		zap.String("tracking_ref", result.TrackingRef))

	return result, nil
}

// place runs the full placement sequence inside the transaction. Any error
// return rolls back everything done so far.
func (e *Engine) place(ctx context.Context, tx Tx, in Input) (*Result, error) {
	lines, err := tx.CartLines(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, repository.ErrEmptyCart
	}

	// Lock every referenced product in ascending ID order so concurrent
	// checkouts over the same products cannot deadlock.
	productIDs := make([]int, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}
	sort.Ints(productIDs)

	products, err := tx.LockProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// Validate the whole cart before creating anything: checkout is
	// all-or-nothing across every line.
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d no longer exists: %w",
				line.ProductID, repository.ErrProductUnavailable)
		}
		if p.Status != models.ProductActive {
			return nil, fmt.Errorf("product %d has status '%s': %w",
				line.ProductID, p.Status, repository.ErrProductUnavailable)
		}
		if line.Quantity > p.StockQuantity {
			return nil, &repository.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: p.StockQuantity,
			}
		}
	}

	var total float64
	for _, line := range lines {
		total += line.PriceAtAddition * float64(line.Quantity)
	}

	now := time.Now()
	order := &models.Order{
		CustomerID:      in.CustomerID,
		OrderDate:       now,
		TotalAmount:     total,
		ShippingAddress: in.ShippingAddress,
		PaymentStatus:   models.PaymentCompleted,
		DeliveryStatus:  models.DeliveryProcessing,
	}
	orderID, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		orderLine := models.OrderLine{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.PriceAtAddition,
			Subtotal:  line.PriceAtAddition * float64(line.Quantity),
		}
		if err := tx.InsertOrderLine(ctx, &orderLine); err != nil {
			return nil, err
		}
		orderLines = append(orderLines, orderLine)
	}

	for _, line := range lines {
		if err := tx.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	txnRef, err := e.insertPaymentWithRetry(ctx, tx, &models.Payment{
		OrderID:       orderID,
		CustomerID:    in.CustomerID,
		PaymentDate:   now,
		Amount:        total,
		PaymentMethod: in.PaymentMethod,
		Status:        models.PaymentCompleted,
	})
	if err != nil {
		return nil, err
	}

	trackRef, err := e.insertShipmentWithRetry(ctx, tx, &models.Shipment{
		OrderID:         orderID,
		ShippingAddress: in.ShippingAddress,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.ClearCart(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	return &Result{
		OrderID:        orderID,
		TotalAmount:    total,
		TransactionRef: txnRef,
		TrackingRef:    trackRef,
		Lines:          orderLines,
	}, nil
}

func (e *Engine) insertPaymentWithRetry(ctx context.Context, tx Tx, payment *models.Payment) (string, error) {
	for attempt := 0; attempt < maxRefAttempts; attempt++ {
		payment.TransactionID = refgen.TransactionRef()
		err := tx.InsertPayment(ctx, payment)
		if err == nil {
			return payment.TransactionID, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return "", err
		}
	}
	return "", fmt.Errorf("transaction reference: %w", repository.ErrReferenceGeneration)
}

func (e *Engine) insertShipmentWithRetry(ctx context.Context, tx Tx, shipment *models.Shipment) (string, error) {
	for attempt := 0; attempt < maxRefAttempts; attempt++ {
		shipment.TrackingNumber = refgen.TrackingRef()
		err := tx.InsertShipment(ctx, shipment)
		if err == nil {
			return shipment.TrackingNumber, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return "", err
		}
	}
	return "", fmt.Errorf("tracking reference: %w", repository.ErrReferenceGeneration)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, repository.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, repository.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, repository.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, repository.ErrReferenceGeneration):
		return "reference_generation"
	case errors.Is(err, repository.ErrInvalidInput):
		return "invalid_input"
	default:
		return "store_error"
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace/internal/api/middleware"
	"marketplace/internal/checkout"
	"marketplace/internal/events"
	"marketplace/internal/repository"
)

// CheckoutService is implemented by the checkout engine.
type CheckoutService interface {
	Checkout(ctx context.Context, in checkout.Input) (*checkout.Result, error)
}

// CacheInvalidator drops cached product entries after stock changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...int)
}

type CheckoutHandler struct {
	service     CheckoutService
	producer    *events.Producer
	invalidator CacheInvalidator
	logger      *zap.Logger
}

func NewCheckoutHandler(service CheckoutService, producer *events.Producer, invalidator CacheInvalidator, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		service:     service,
		producer:    producer,
		invalidator: invalidator,
		logger:      logger,
	}
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type CheckoutResponse struct {
	OrderID        int     `json:"order_id"`
	TotalAmount    float64 `json:"total_amount"`
	TransactionRef string  `json:"transaction_reference"`
	TrackingRef    string  `json:"tracking_reference"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.CustomerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	var req CheckoutRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	result, err := h.service.Checkout(r.Context(), checkout.Input{
		CustomerID:      customer.CustomerID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.afterCommit(r.Context(), customer.CustomerID, result)

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:        result.OrderID,
		TotalAmount:    result.TotalAmount,
		TransactionRef: result.TransactionRef,
		TrackingRef:    result.TrackingRef,
	})
}

// afterCommit runs the best-effort side effects of a placed order: cache
// invalidation for the sold products and event publication.
func (h *CheckoutHandler) afterCommit(ctx context.Context, customerID int, result *checkout.Result) {
	productIDs := make([]int, 0, len(result.Lines))
	eventLines := make([]events.OrderLine, 0, len(result.Lines))
	for _, line := range result.Lines {
		productIDs = append(productIDs, line.ProductID)
		eventLines = append(eventLines, events.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if h.invalidator != nil {
		h.invalidator.Invalidate(ctx, productIDs...)
	}

	if h.producer != nil {
		h.producer.PublishOrderPlaced(ctx, events.OrderPlacedEvent{
			EventID:        uuid.New().String(),
			OrderID:        result.OrderID,
			CustomerID:     customerID,
			TotalAmount:    result.TotalAmount,
			TransactionRef: result.TransactionRef,
			TrackingRef:    result.TrackingRef,
			Lines:          eventLines,
			Timestamp:      time.Now().UTC(),
		})
	}
}

func (h *CheckoutHandler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", "cart is empty", nil)
	case errors.Is(err, repository.ErrProductUnavailable):
		writeError(w, http.StatusConflict, "product_unavailable", err.Error(), nil)
	case errors.Is(err, repository.ErrInsufficientStock):
		var stockErr *repository.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeError(w, http.StatusConflict, "insufficient_stock", err.Error(), map[string]int{
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})
			return
		}
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error(), nil)
	case errors.Is(err, repository.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "store_timeout", "checkout timed out, no order was placed", nil)
	default:
		h.logger.Error("checkout failed",
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to place order", nil)
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"marketplace/internal/api/middleware"
	"marketplace/internal/models"
	"marketplace/internal/repository"
)

type OrderHandler struct {
	repo repository.OrderRepository
}

func NewOrderHandler(repo repository.OrderRepository) *OrderHandler {
	return &OrderHandler{repo: repo}
}

// GetMine lists the customer's orders with their payment and shipment
// references.
func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.CustomerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	orders, err := h.repo.GetByCustomerID(r.Context(), customer.CustomerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get orders", nil)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

type OrderDetailResponse struct {
	Order    *models.Order      `json:"order"`
	Lines    []models.OrderLine `json:"lines"`
	Payment  *models.Payment    `json:"payment,omitempty"`
	Shipment *models.Shipment   `json:"shipment,omitempty"`
}

func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.CustomerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id", nil)
		return
	}

	order, lines, err := h.repo.GetWithLines(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "order not found", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to get order", nil)
		}
		return
	}
	if order.CustomerID != customer.CustomerID {
		writeError(w, http.StatusNotFound, "not_found", "order not found", nil)
		return
	}

	resp := OrderDetailResponse{Order: order, Lines: lines}
	if payment, err := h.repo.GetPayment(r.Context(), id); err == nil {
		resp.Payment = payment
	}
	if shipment, err := h.repo.GetShipment(r.Context(), id); err == nil {
		resp.Shipment = shipment
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id", nil)
		return
	}

	var req statusUpdateRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	err = h.repo.UpdatePaymentStatus(r.Context(), id, models.PaymentStatus(req.Status))
	h.writeStatusUpdateResult(w, err)
}

func (h *OrderHandler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id", nil)
		return
	}

	var req statusUpdateRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	err = h.repo.UpdateDeliveryStatus(r.Context(), id, models.DeliveryStatus(req.Status))
	h.writeStatusUpdateResult(w, err)
}

func (h *OrderHandler) writeStatusUpdateResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusNoContent, nil)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "order not found", nil)
	case errors.Is(err, repository.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update order status", nil)
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"marketplace/internal/api/middleware"
	"marketplace/internal/repository"
)

type CartHandler struct {
	repo repository.CartRepository
}

func NewCartHandler(repo repository.CartRepository) *CartHandler {
	return &CartHandler{repo: repo}
}

type CartAddRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.CustomerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	var req CartAddRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.repo.AddLine(r.Context(), customer.CustomerID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "product not found", nil)
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to add to cart", nil)
		}
		return
	}

	writeJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.CustomerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	lines, err := h.repo.GetLines(r.Context(), customer.CustomerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get cart", nil)
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.CustomerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil || productID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid product id", nil)
		return
	}

	if err := h.repo.RemoveLine(r.Context(), customer.CustomerID, productID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "cart line not found", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to remove cart line", nil)
		}
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

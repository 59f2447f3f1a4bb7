package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

type CustomerHandler struct {
	repo repository.CustomerRepository
}

func NewCustomerHandler(repo repository.CustomerRepository) *CustomerHandler {
	return &CustomerHandler{repo: repo}
}

type CustomerCreateRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

type CustomerCreateResponse struct {
	CustomerID int    `json:"customer_id"`
	Token      string `json:"token"`
}

func newToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Create registers a customer and issues the opaque API token in one step.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CustomerCreateRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	c := models.Customer{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Token:       newToken(),
	}

	if err := h.repo.Create(r.Context(), &c); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			writeError(w, http.StatusConflict, "duplicate", err.Error(), nil)
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to create customer", nil)
		}
		return
	}

	writeJSON(w, http.StatusCreated, CustomerCreateResponse{
		CustomerID: c.CustomerID,
		Token:      c.Token,
	})
}

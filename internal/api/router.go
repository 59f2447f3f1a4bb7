package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"marketplace/internal/api/handlers"
	"marketplace/internal/api/middleware"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"
)

type Handlers struct {
	Products  *handlers.ProductHandler
	Customers *handlers.CustomerHandler
	Cart      *handlers.CartHandler
	Checkout  *handlers.CheckoutHandler
	Orders    *handlers.OrderHandler
}

// NewRouter assembles all routes. Customer registration and product reads
// are public; cart, checkout and orders require a bearer token.
func NewRouter(h Handlers, customers repository.CustomerRepository, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/customers", h.Customers.Create)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.Products.GetAll)
		r.Get("/{id}", h.Products.GetByID)
		r.Get("/category/{category}", h.Products.GetByCategory)
		r.Post("/", h.Products.Create)
		r.Put("/{id}", h.Products.Update)
		r.Delete("/{id}", h.Products.Delete)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(customers))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.Get)
			r.Post("/items", h.Cart.Add)
			r.Delete("/items/{productID}", h.Cart.Remove)
		})

		r.Post("/checkout", h.Checkout.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.GetMine)
			r.Get("/{id}", h.Orders.GetByID)
			r.Patch("/{id}/payment-status", h.Orders.UpdatePaymentStatus)
			r.Patch("/{id}/delivery-status", h.Orders.UpdateDeliveryStatus)
		})
	})

	return r
}

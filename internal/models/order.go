package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryShipped    DeliveryStatus = "shipped"
	DeliveryInTransit  DeliveryStatus = "in_transit"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryProcessing, DeliveryShipped, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}

// Order and its lines, payment and shipment are created together at checkout
// and never independently. Only the two status fields mutate afterwards.
type Order struct {
	OrderID         int            `json:"order_id"`
	CustomerID      int            `json:"customer_id"`
	OrderDate       time.Time      `json:"order_date"`
	TotalAmount     float64        `json:"total_amount"`
	ShippingAddress string         `json:"shipping_address"`
	PaymentStatus   PaymentStatus  `json:"payment_status"`
	DeliveryStatus  DeliveryStatus `json:"delivery_status"`

	// Populated by joined reads, empty otherwise.
	TransactionRef string `json:"transaction_reference,omitempty"`
	TrackingRef    string `json:"tracking_reference,omitempty"`
}

type OrderLine struct {
	OrderLineID int     `json:"order_line_id"`
	OrderID     int     `json:"order_id"`
	ProductID   int     `json:"product_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type Payment struct {
	PaymentID     int           `json:"payment_id"`
	OrderID       int           `json:"order_id"`
	CustomerID    int           `json:"customer_id"`
	PaymentDate   time.Time     `json:"payment_date"`
	Amount        float64       `json:"amount"`
	PaymentMethod string        `json:"payment_method"`
	TransactionID string        `json:"transaction_id"`
	Status        PaymentStatus `json:"status"`
}

type Shipment struct {
	ShipmentID      int       `json:"shipment_id"`
	OrderID         int       `json:"order_id"`
	TrackingNumber  string    `json:"tracking_number"`
	ShippingAddress string    `json:"shipping_address"`
	CreatedAt       time.Time `json:"created_at"`
}

// Package events publishes order lifecycle events to Kafka. Publishing is
// best-effort and happens after the checkout transaction commits; a failed
// publish is logged and never fails the order.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const orderTopic = "order-events"

type OrderPlacedEvent struct {
	EventID        string      `json:"event_id"`
	OrderID        int         `json:"order_id"`
	CustomerID     int         `json:"customer_id"`
	TotalAmount    float64     `json:"total_amount"`
	TransactionRef string      `json:"transaction_reference"`
	TrackingRef    string      `json:"tracking_reference"`
	Lines          []OrderLine `json:"lines"`
	Timestamp      time.Time   `json:"timestamp"`
}

type OrderLine struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer returns a disabled producer when brokersCSV is empty.
func NewProducer(brokersCSV string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}

	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &Producer{logger: logger}
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        orderTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

func (p *Producer) Enabled() bool {
	return p.writer != nil
}

func (p *Producer) PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) {
	if !p.Enabled() {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal order event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%d", event.OrderID)),
		Value: data,
		Time:  event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish order event",
			zap.String("event_id", event.EventID),
			zap.Int("order_id", event.OrderID),
			zap.Error(err))
		return
	}

	p.logger.Info("order event published",
		zap.String("event_id", event.EventID),
		zap.Int("order_id", event.OrderID))
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

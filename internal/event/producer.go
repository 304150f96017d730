// Package event publishes storefront domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics.
const (
	TopicOrderSubmitted    = "storefront.order.submitted"
	TopicCheckoutAbandoned = "storefront.checkout.abandoned"
)

// Event types.
const (
	EventOrderSubmitted    = "order.submitted"
	EventCheckoutAbandoned = "checkout.abandoned"
)

// OrderSubmittedData is the payload of an order.submitted event.
type OrderSubmittedData struct {
	SessionID     string             `json:"session_id"`
	UserID        string             `json:"user_id,omitempty"`
	OrderID       string             `json:"order_id"`
	TotalPrice    float64            `json:"total_price"`
	PaymentMethod string             `json:"payment_method"`
	Items         []domain.OrderItem `json:"items"`
}

// CheckoutAbandonedData is the payload of a checkout.abandoned event.
type CheckoutAbandonedData struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id,omitempty"`
	ItemCount int      `json:"item_count"`
	Total     string   `json:"total"`
	Status    string   `json:"status"`
	Products  []string `json:"products"`
}

// Publisher writes an event envelope to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront events. A nil *Producer publishes nothing,
// which is how events are disabled.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a producer on top of publisher.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishOrderSubmitted announces an order accepted by the order service.
func (p *Producer) PublishOrderSubmitted(ctx context.Context, sessionID string, order *domain.Order, req domain.OrderRequest) error {
	if p == nil {
		return nil
	}

	data := OrderSubmittedData{
		SessionID:     sessionID,
		UserID:        req.User,
		OrderID:       order.ID,
		TotalPrice:    req.TotalPrice,
		PaymentMethod: req.PaymentInfo.Method,
		Items:         req.Items,
	}
	return p.publish(ctx, TopicOrderSubmitted, EventOrderSubmitted, sessionID, req.User, data)
}

// PublishCheckoutAbandoned announces a checkout that was discarded before an
// order was placed.
func (p *Producer) PublishCheckoutAbandoned(ctx context.Context, sessionID, userID string, snap domain.CheckoutSnapshot) error {
	if p == nil {
		return nil
	}

	products := make([]string, 0, len(snap.OrderItems))
	count := 0
	for _, item := range snap.OrderItems {
		products = append(products, item.ProductID)
		count += item.Quantity
	}

	data := CheckoutAbandonedData{
		SessionID: sessionID,
		UserID:    userID,
		ItemCount: count,
		Total:     domain.TotalOf(snap.OrderItems).StringFixed(2),
		Status:    string(snap.Status()),
		Products:  products,
	}
	return p.publish(ctx, TopicCheckoutAbandoned, EventCheckoutAbandoned, sessionID, userID, data)
}

// publish keys every event by session so one session's events stay ordered.
func (p *Producer) publish(ctx context.Context, topic, eventType, sessionID, userID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, sessionID, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)),
		pkgkafka.WithAttribute("user_id", userID),
	)
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.InfoContext(ctx, "event published",
		slog.String("event_type", eventType),
		slog.String("event_id", evt.ID),
		slog.String("session_id", sessionID),
	)
	return nil
}

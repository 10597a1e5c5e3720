package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"storebot/internal/models"
)

// EventPublisher handles publishing storefront events. Publishing is
// best-effort: a failed announcement never rolls back a completed sale.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleCompleted announces a completed immediate purchase
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	key := fmt.Sprintf("sale-%d", event.TransactionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPreorderFulfilled announces a fully served preorder
func (ep *EventPublisher) PublishPreorderFulfilled(ctx context.Context, event *models.PreorderFulfilledEvent) error {
	key := fmt.Sprintf("preorder-%d", event.PreorderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockAdded announces a restock
func (ep *EventPublisher) PublishStockAdded(ctx context.Context, event *models.StockAddedEvent) error {
	key := fmt.Sprintf("stock-%s", event.Code)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishTopupCredited announces a credited deposit
func (ep *EventPublisher) PublishTopupCredited(ctx context.Context, event *models.TopupCreditedEvent) error {
	key := fmt.Sprintf("topup-%d", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onTopupRequested func(context.Context, *models.TopupRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnTopupRequested registers a handler for TopupRequested events
func (eh *EventHandler) OnTopupRequested(handler func(context.Context, *models.TopupRequestedEvent) error) {
	eh.onTopupRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeTopupRequested:
		if eh.onTopupRequested != nil {
			var event models.TopupRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TopupRequested event: %w", err)
			}
			return eh.onTopupRequested(ctx, &event)
		}
	}

	return nil
}

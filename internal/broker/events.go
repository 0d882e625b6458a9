package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ticketeer/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTicketsIssued publishes a TicketsIssued event. Keyed by buyer so a
// buyer's notifications stay ordered.
func (ep *EventPublisher) PublishTicketsIssued(ctx context.Context, event *models.TicketsIssuedEvent) error {
	key := fmt.Sprintf("buyer-%s", event.BuyerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishTicketTypeCreated publishes a TicketTypeCreated event
func (ep *EventPublisher) PublishTicketTypeCreated(ctx context.Context, event *models.TicketTypeCreatedEvent) error {
	key := fmt.Sprintf("event-%s", event.EventRef)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReconciliationFailed publishes a ReconciliationFailed event
func (ep *EventPublisher) PublishReconciliationFailed(ctx context.Context, event *models.ReconciliationFailedEvent) error {
	key := fmt.Sprintf("charge-%s-%s", event.Provider, event.ProviderRef)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onTicketsIssued        func(context.Context, *models.TicketsIssuedEvent) error
	onTicketTypeCreated    func(context.Context, *models.TicketTypeCreatedEvent) error
	onReconciliationFailed func(context.Context, *models.ReconciliationFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnTicketsIssued registers a handler for TicketsIssued events
func (eh *EventHandler) OnTicketsIssued(handler func(context.Context, *models.TicketsIssuedEvent) error) {
	eh.onTicketsIssued = handler
}

// OnTicketTypeCreated registers a handler for TicketTypeCreated events
func (eh *EventHandler) OnTicketTypeCreated(handler func(context.Context, *models.TicketTypeCreatedEvent) error) {
	eh.onTicketTypeCreated = handler
}

// OnReconciliationFailed registers a handler for ReconciliationFailed events
func (eh *EventHandler) OnReconciliationFailed(handler func(context.Context, *models.ReconciliationFailedEvent) error) {
	eh.onReconciliationFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeTicketsIssued:
		if eh.onTicketsIssued != nil {
			var event models.TicketsIssuedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketsIssued event: %w", err)
			}
			return eh.onTicketsIssued(ctx, &event)
		}

	case models.EventTypeTicketTypeCreated:
		if eh.onTicketTypeCreated != nil {
			var event models.TicketTypeCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketTypeCreated event: %w", err)
			}
			return eh.onTicketTypeCreated(ctx, &event)
		}

	case models.EventTypeReconciliationFailed:
		if eh.onReconciliationFailed != nil {
			var event models.ReconciliationFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReconciliationFailed event: %w", err)
			}
			return eh.onReconciliationFailed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

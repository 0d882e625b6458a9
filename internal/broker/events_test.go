package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ticketeer/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageDispatchesTicketsIssued(t *testing.T) {
	eh := NewEventHandler()

	var got *models.TicketsIssuedEvent
	eh.OnTicketsIssued(func(_ context.Context, e *models.TicketsIssuedEvent) error {
		got = e
		return nil
	})

	event := models.TicketsIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeTicketsIssued,
			Timestamp: time.Now(),
		},
		BuyerID:        "user-1",
		TicketTypeName: "GA",
		Quantity:       2,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = eh.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.BuyerID)
	assert.Equal(t, 2, got.Quantity)
}

func TestHandleMessageDispatchesReconciliationFailed(t *testing.T) {
	eh := NewEventHandler()

	var got *models.ReconciliationFailedEvent
	eh.OnReconciliationFailed(func(_ context.Context, e *models.ReconciliationFailedEvent) error {
		got = e
		return nil
	})

	event := models.ReconciliationFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeReconciliationFailed,
			Timestamp: time.Now(),
		},
		Provider:    "paystack",
		ProviderRef: "ref-1",
		Reason:      "insufficient inventory",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = eh.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ref-1", got.ProviderRef)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	eh := NewEventHandler()

	payload, err := json.Marshal(models.BaseEvent{EventType: "SOMETHING_ELSE"})
	require.NoError(t, err)

	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	eh := NewEventHandler()
	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")}))
}

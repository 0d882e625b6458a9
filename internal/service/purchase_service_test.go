package service

import (
	"testing"
	"time"

	"ticketeer/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateCart(t *testing.T) {
	valid := func() *PurchaseRequest {
		return &PurchaseRequest{
			BuyerID: "user-1",
			EventID: "event-1",
			Lines:   []CartLine{{TicketTypeID: uuid.New().String(), Quantity: 2}},
		}
	}

	t.Run("accepts a well formed cart", func(t *testing.T) {
		assert.NoError(t, validateCart(valid()))
	})

	t.Run("rejects nil request", func(t *testing.T) {
		assert.ErrorIs(t, validateCart(nil), models.ErrInvalidCart)
	})

	t.Run("rejects missing buyer", func(t *testing.T) {
		req := valid()
		req.BuyerID = ""
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})

	t.Run("rejects missing event", func(t *testing.T) {
		req := valid()
		req.EventID = ""
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})

	t.Run("rejects empty cart", func(t *testing.T) {
		req := valid()
		req.Lines = nil
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		req := valid()
		req.Lines[0].Quantity = 0
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		req := valid()
		req.Lines[0].Quantity = -3
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})

	t.Run("rejects line with no ticket type", func(t *testing.T) {
		req := valid()
		req.Lines[0].TicketTypeID = ""
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})

	t.Run("rejects malformed ticket type id", func(t *testing.T) {
		req := valid()
		req.Lines[0].TicketTypeID = "not-a-uuid"
		assert.ErrorIs(t, validateCart(req), models.ErrInvalidCart)
	})
}

func TestPurchasable(t *testing.T) {
	event := func(start time.Time) *models.Event {
		return &models.Event{
			ID:        "event-1",
			StartDate: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
			StartTime: start.Format("15:04"),
		}
	}

	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)

	t.Run("open before start", func(t *testing.T) {
		assert.NoError(t, purchasable(event(start), start.Add(-time.Hour)))
	})

	t.Run("open a microsecond before start", func(t *testing.T) {
		assert.NoError(t, purchasable(event(start), start.Add(-time.Microsecond)))
	})

	t.Run("closed at exactly the start instant", func(t *testing.T) {
		assert.ErrorIs(t, purchasable(event(start), start), models.ErrEventAlreadyStarted)
	})

	t.Run("closed after start", func(t *testing.T) {
		assert.ErrorIs(t, purchasable(event(start), start.Add(time.Minute)), models.ErrEventAlreadyStarted)
	})

	t.Run("cancelled events never sell", func(t *testing.T) {
		e := event(start)
		e.Cancelled = true
		assert.ErrorIs(t, purchasable(e, start.Add(-time.Hour)), models.ErrEventCancelled)
	})

	t.Run("malformed start time closes sales", func(t *testing.T) {
		e := event(start)
		e.StartTime = "6pm"
		assert.ErrorIs(t, purchasable(e, start.Add(-time.Hour)), models.ErrEventAlreadyStarted)
	})
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&models.InsufficientInventoryError{Name: "VIP", Requested: 3, Available: 1}, "insufficient_inventory"},
		{models.ErrEventNotFound, "event_not_found"},
		{models.ErrEventCancelled, "event_cancelled"},
		{models.ErrEventAlreadyStarted, "event_started"},
		{models.ErrTicketTypeNotFound, "ticket_type_not_found"},
		{models.ErrInvalidCart, "invalid_cart"},
		{models.ErrAlreadyFulfilled, "already_fulfilled"},
		{assert.AnError, "db_error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, failureReason(tt.err))
	}
}

package service

import (
	"context"
	"testing"

	"ticketeer/internal/credential"
	"ticketeer/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCheckInOutcome(t *testing.T) {
	assert.Equal(t, "already_used", checkInOutcome(models.ErrTicketAlreadyUsed))
	assert.Equal(t, "ticket_cancelled", checkInOutcome(models.ErrTicketCancelled))
	assert.Equal(t, "event_cancelled", checkInOutcome(models.ErrEventCancelled))
	assert.Equal(t, "event_ended", checkInOutcome(models.ErrEventEnded))
	assert.Equal(t, "not_found", checkInOutcome(models.ErrTicketNotFound))
	assert.Equal(t, "error", checkInOutcome(assert.AnError))
}

func TestCheckInByCredentialRejectsMalformedPayload(t *testing.T) {
	// The store is never reached: a payload that does not decode fails
	// before any lookup.
	s := NewTicketService(nil)

	_, err := s.CheckInByCredential(context.Background(), "not-a-credential")
	assert.ErrorIs(t, err, models.ErrInvalidCredential)

	_, err = s.CheckInByCredential(context.Background(), `{"user_id":"u1"}`)
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
}

func TestMatchCredential(t *testing.T) {
	ticket := &models.Ticket{
		ID:      "ticket-1",
		UserID:  "user-1",
		EventID: "event-1",
	}
	claims := credential.Claims{
		TicketID: "ticket-1",
		UserID:   "user-1",
		EventID:  "event-1",
		Nonce:    "n",
	}

	t.Run("accepts matching claims", func(t *testing.T) {
		assert.NoError(t, matchCredential(claims, ticket))
	})

	t.Run("rejects foreign event", func(t *testing.T) {
		c := claims
		c.EventID = "event-2"
		assert.ErrorIs(t, matchCredential(c, ticket), models.ErrInvalidCredential)
	})

	t.Run("rejects foreign holder", func(t *testing.T) {
		c := claims
		c.UserID = "user-2"
		assert.ErrorIs(t, matchCredential(c, ticket), models.ErrInvalidCredential)
	})
}

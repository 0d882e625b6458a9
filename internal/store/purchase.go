package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketeer/internal/models"
)

// TicketSeed carries the pre-generated identity and credential for one seat.
// Credentials are issued before the transaction opens so no third-party work
// happens while rows are locked.
type TicketSeed struct {
	ID         string
	Credential string
	QRCode     string
}

// PurchaseLine is one cart line with a seed per requested seat.
type PurchaseLine struct {
	TicketTypeID string
	Seeds        []TicketSeed
}

// FulfillmentKey identifies the provider charge a purchase settles. Inserting
// it inside the purchase transaction is what makes confirmation exactly-once:
// a redelivered webhook conflicts on (provider, provider_ref) and aborts
// before touching inventory.
type FulfillmentKey struct {
	Provider    string
	ProviderRef string
	UserID      string
	AmountCents int64
}

// PurchaseParams drives one atomic purchase transaction.
type PurchaseParams struct {
	BuyerID     string
	EventID     string
	Lines       []PurchaseLine
	Fulfillment *FulfillmentKey
}

// PurchasedLine is the per-type outcome of a committed purchase.
type PurchasedLine struct {
	TicketType models.TicketType
	Tickets    []models.Ticket
}

// PurchaseOutcome is returned only after the transaction commits.
type PurchaseOutcome struct {
	Event *models.Event
	Lines []PurchasedLine
}

// Purchase atomically converts a validated cart into ticket rows and updated
// inventory counters, or fails with no partial effect. Cart lines are applied
// in submitted order; each ticket type row is taken FOR UPDATE so concurrent
// purchases against the same type serialize on the row lock and re-read a
// fresh available_quantity.
func (s *Store) Purchase(ctx context.Context, now time.Time, p PurchaseParams) (*PurchaseOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if p.Fulfillment != nil {
		var fulfillmentID int64
		err = tx.GetContext(ctx, &fulfillmentID, `
			INSERT INTO payment_fulfillments
				(provider, provider_ref, user_id, event_id, amount_cents, status, fulfilled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (provider, provider_ref) DO NOTHING
			RETURNING id`,
			p.Fulfillment.Provider, p.Fulfillment.ProviderRef, p.Fulfillment.UserID,
			p.EventID, p.Fulfillment.AmountCents, models.FulfillmentStatusFulfilled, now)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAlreadyFulfilled
		}
		if err != nil {
			return nil, fmt.Errorf("failed to record fulfillment: %w", err)
		}
	}

	var event models.Event
	err = tx.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", p.EventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	if event.Cancelled {
		return nil, models.ErrEventCancelled
	}
	if !now.Before(event.StartsAt()) {
		return nil, models.ErrEventAlreadyStarted
	}

	outcome := &PurchaseOutcome{Event: &event, Lines: make([]PurchasedLine, 0, len(p.Lines))}

	for _, line := range p.Lines {
		var tt models.TicketType
		err = tx.GetContext(ctx, &tt,
			"SELECT * FROM ticket_types WHERE id = $1 AND event_id = $2 FOR UPDATE",
			line.TicketTypeID, p.EventID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTicketTypeNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock ticket type %s: %w", line.TicketTypeID, err)
		}

		quantity := len(line.Seeds)
		if tt.Status == models.TicketTypeStatusClosed {
			return nil, models.ErrEventAlreadyStarted
		}
		if tt.AvailableQuantity < quantity {
			return nil, &models.InsufficientInventoryError{
				TicketTypeID: tt.ID,
				Name:         tt.Name,
				Requested:    quantity,
				Available:    tt.AvailableQuantity,
			}
		}

		tt.AvailableQuantity -= quantity
		tt.SoldQuantity += quantity
		if tt.AvailableQuantity == 0 {
			tt.Status = models.TicketTypeStatusSoldOut
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ticket_types
			SET available_quantity = $1, sold_quantity = $2, status = $3, updated_at = NOW()
			WHERE id = $4`,
			tt.AvailableQuantity, tt.SoldQuantity, tt.Status, tt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve inventory for %s: %w", tt.ID, err)
		}

		tickets := make([]models.Ticket, 0, quantity)
		for _, seed := range line.Seeds {
			ticket := models.Ticket{
				ID:           seed.ID,
				UserID:       p.BuyerID,
				EventID:      p.EventID,
				TicketTypeID: tt.ID,
				Credential:   seed.Credential,
				QRCode:       seed.QRCode,
				Status:       models.TicketStatusGoing,
			}
			err = tx.GetContext(ctx, &ticket.PurchasedAt, `
				INSERT INTO tickets
					(id, user_id, event_id, ticket_type_id, credential, qr_code, status, purchased_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING purchased_at`,
				ticket.ID, ticket.UserID, ticket.EventID, ticket.TicketTypeID,
				ticket.Credential, ticket.QRCode, ticket.Status, now)
			if err != nil {
				return nil, fmt.Errorf("failed to create ticket: %w", err)
			}
			tickets = append(tickets, ticket)
		}

		outcome.Lines = append(outcome.Lines, PurchasedLine{TicketType: tt, Tickets: tickets})
	}

	if err := s.AddAttendeeTx(ctx, tx, p.EventID, p.BuyerID); err != nil {
		return nil, fmt.Errorf("failed to record attendee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return outcome, nil
}

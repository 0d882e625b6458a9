package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketeer/internal/models"
)

// GetTicketByID retrieves a ticket by ID
func (s *Store) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.GetContext(ctx, &ticket, "SELECT * FROM tickets WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketsByEvent retrieves all tickets issued for an event
func (s *Store) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.SelectContext(ctx, &tickets,
		"SELECT * FROM tickets WHERE event_id = $1 ORDER BY purchased_at DESC", eventID)
	return tickets, err
}

// GetTicketsByUser retrieves a buyer's tickets
func (s *Store) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.SelectContext(ctx, &tickets,
		"SELECT * FROM tickets WHERE user_id = $1 ORDER BY purchased_at DESC", userID)
	return tickets, err
}

// CountTicketsSold counts tickets sold across an event's ticket types
func (s *Store) CountTicketsSold(ctx context.Context, eventID string) (int, error) {
	var sold int
	err := s.db.GetContext(ctx, &sold,
		"SELECT COALESCE(SUM(sold_quantity), 0) FROM ticket_types WHERE event_id = $1", eventID)
	return sold, err
}

// CheckInTicket transitions a ticket going -> used under a row lock. The
// ticket state in the database decides admission, never the scanned payload.
func (s *Store) CheckInTicket(ctx context.Context, ticketID string, now time.Time) (*models.Ticket, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ticket models.Ticket
	err = tx.GetContext(ctx, &ticket,
		"SELECT * FROM tickets WHERE id = $1 FOR UPDATE", ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}

	var event models.Event
	err = tx.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", ticket.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket event: %w", err)
	}

	switch {
	case ticket.Status == models.TicketStatusUsed:
		return nil, models.ErrTicketAlreadyUsed
	case ticket.Status == models.TicketStatusCancelled:
		return nil, models.ErrTicketCancelled
	case event.Cancelled:
		return nil, models.ErrEventCancelled
	case now.After(event.EndsAt()):
		return nil, models.ErrEventEnded
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE tickets SET status = $1, used_at = $2 WHERE id = $3",
		models.TicketStatusUsed, now, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to check in ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	ticket.Status = models.TicketStatusUsed
	ticket.UsedAt = &now
	return &ticket, nil
}

// GetFulfillment retrieves the fulfillment record for a provider reference
func (s *Store) GetFulfillment(ctx context.Context, provider, providerRef string) (*models.PaymentFulfillment, error) {
	var f models.PaymentFulfillment
	err := s.db.GetContext(ctx, &f,
		"SELECT * FROM payment_fulfillments WHERE provider = $1 AND provider_ref = $2",
		provider, providerRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// RecordFailedFulfillment persists that a confirmed charge could not be
// converted into tickets. An existing fulfilled row is never overwritten.
func (s *Store) RecordFailedFulfillment(ctx context.Context, provider, providerRef, userID, eventID string, amountCents int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_fulfillments
			(provider, provider_ref, user_id, event_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, provider_ref) DO NOTHING`,
		provider, providerRef, userID, eventID, amountCents, models.FulfillmentStatusFailed)
	return err
}

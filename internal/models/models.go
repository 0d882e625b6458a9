package models

import (
	"time"

	"github.com/lib/pq"
)

// Event represents an organizer's event
type Event struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	StartDate   time.Time      `db:"start_date" json:"start_date"`
	StartTime   string         `db:"start_time" json:"start_time"`
	EndDate     time.Time      `db:"end_date" json:"end_date"`
	EndTime     string         `db:"end_time" json:"end_time"`
	Location    pq.StringArray `db:"location" json:"location,omitempty"`
	MeetLink    string         `db:"meet_link" json:"meet_link,omitempty"`
	OrganizerID string         `db:"organizer_id" json:"organizer_id"`
	GuestLimit  int            `db:"guest_limit" json:"guest_limit"`
	Cancelled   bool           `db:"cancelled" json:"cancelled"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// StartsAt combines start_date and start_time ("15:04") into the instant
// ticket sales close. start_time is validated on write, so a malformed value
// collapses to the zero time and every sale is rejected rather than allowed.
func (e *Event) StartsAt() time.Time {
	return combineDateTime(e.StartDate, e.StartTime)
}

// EndsAt combines end_date and end_time into the instant check-in closes.
func (e *Event) EndsAt() time.Time {
	return combineDateTime(e.EndDate, e.EndTime)
}

func combineDateTime(date time.Time, hhmm string) time.Time {
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.UTC)
}

// TicketType represents one class of ticket sold for an event.
// Invariant: AvailableQuantity + SoldQuantity == TotalQuantity.
type TicketType struct {
	ID                string    `db:"id" json:"id"`
	EventID           string    `db:"event_id" json:"event_id"`
	Name              string    `db:"name" json:"name"`
	Description       string    `db:"description" json:"description,omitempty"`
	PriceCents        int64     `db:"price_cents" json:"price_cents"`
	TotalQuantity     int       `db:"total_quantity" json:"total_quantity"`
	AvailableQuantity int       `db:"available_quantity" json:"available_quantity"`
	SoldQuantity      int       `db:"sold_quantity" json:"sold_quantity"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Ticket is one purchased seat. Quantity is always one per record; a cart
// line for N seats produces N tickets, each with its own credential.
type Ticket struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	EventID      string     `db:"event_id" json:"event_id"`
	TicketTypeID string     `db:"ticket_type_id" json:"ticket_type_id"`
	Credential   string     `db:"credential" json:"credential"`
	QRCode       string     `db:"qr_code" json:"qr_code"`
	Status       string     `db:"status" json:"status"`
	PurchasedAt  time.Time  `db:"purchased_at" json:"purchased_at"`
	UsedAt       *time.Time `db:"used_at" json:"used_at,omitempty"`
}

// PaymentFulfillment ties a provider charge reference to at most one
// completed purchase. The (provider, provider_ref) pair is unique, which is
// what makes webhook redelivery safe.
type PaymentFulfillment struct {
	ID          int64      `db:"id" json:"id"`
	Provider    string     `db:"provider" json:"provider"`
	ProviderRef string     `db:"provider_ref" json:"provider_ref"`
	UserID      string     `db:"user_id" json:"user_id"`
	EventID     string     `db:"event_id" json:"event_id"`
	AmountCents int64      `db:"amount_cents" json:"amount_cents"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	FulfilledAt *time.Time `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
}

// Ticket type statuses
const (
	TicketTypeStatusAvailable = "available"
	TicketTypeStatusSoldOut   = "sold_out"
	TicketTypeStatusClosed    = "closed"
)

// Ticket statuses
const (
	TicketStatusGoing     = "going"
	TicketStatusCheckedIn = "checkedIn"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
)

// Fulfillment statuses
const (
	FulfillmentStatusFulfilled = "fulfilled"
	FulfillmentStatusFailed    = "failed"
)

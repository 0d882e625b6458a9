package models

import "time"

// Event types
const (
	EventTypeTicketsIssued        = "TICKETS_ISSUED"
	EventTypeTicketTypeCreated    = "TICKET_TYPE_CREATED"
	EventTypeReconciliationFailed = "RECONCILIATION_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// IssuedTicket is a ticket reference carried in notification events.
type IssuedTicket struct {
	TicketID   string `json:"ticket_id"`
	Credential string `json:"credential"`
}

// TicketsIssuedEvent is published once per ticket type in a completed
// purchase. The notification worker turns it into a buyer email.
type TicketsIssuedEvent struct {
	BaseEvent
	BuyerID        string         `json:"buyer_id"`
	EventRef       string         `json:"event_ref"`
	EventTitle     string         `json:"event_title"`
	StartDate      time.Time      `json:"start_date"`
	StartTime      string         `json:"start_time"`
	Location       []string       `json:"location,omitempty"`
	MeetLink       string         `json:"meet_link,omitempty"`
	TicketTypeID   string         `json:"ticket_type_id"`
	TicketTypeName string         `json:"ticket_type_name"`
	Quantity       int            `json:"quantity"`
	Tickets        []IssuedTicket `json:"tickets"`
	PurchasedAt    time.Time      `json:"purchased_at"`
}

// TicketTypeCreatedEvent notifies the organizer that a ticket type went live.
type TicketTypeCreatedEvent struct {
	BaseEvent
	OrganizerID    string `json:"organizer_id"`
	EventRef       string `json:"event_ref"`
	EventTitle     string `json:"event_title"`
	TicketTypeID   string `json:"ticket_type_id"`
	TicketTypeName string `json:"ticket_type_name"`
	PriceCents     int64  `json:"price_cents"`
	TotalQuantity  int    `json:"total_quantity"`
}

// ReconciliationFailedEvent is published when a confirmed charge could not be
// converted into tickets. This is a financial discrepancy; the worker routes
// it to the operational channel, never back to the buyer as a plain error.
type ReconciliationFailedEvent struct {
	BaseEvent
	Provider    string `json:"provider"`
	ProviderRef string `json:"provider_ref"`
	BuyerID     string `json:"buyer_id"`
	EventRef    string `json:"event_ref"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

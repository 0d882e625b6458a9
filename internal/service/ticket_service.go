package service

import (
	"context"
	"fmt"
	"time"

	"ticketeer/internal/credential"
	"ticketeer/internal/models"
	"ticketeer/internal/store"
	"ticketeer/internal/util"

	"go.uber.org/zap"
)

// TicketService covers the post-purchase ticket surface: check-in and the
// organizer/buyer read paths.
type TicketService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(store *store.Store) *TicketService {
	return &TicketService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CheckIn marks a ticket used at the door. Scanning the same credential
// twice fails on the second scan.
func (s *TicketService) CheckIn(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "TicketService.CheckIn")
	defer span.End()

	ticket, err := s.store.CheckInTicket(ctx, ticketID, time.Now().UTC())
	if err != nil {
		util.CheckInsTotal.WithLabelValues(checkInOutcome(err)).Inc()
		return nil, err
	}

	util.CheckInsTotal.WithLabelValues("admitted").Inc()
	s.logger.Info("Ticket checked in",
		zap.String("ticket_id", ticket.ID),
		zap.String("event_id", ticket.EventID))
	return ticket, nil
}

// CheckInByCredential admits a scanned credential payload. The claims only
// locate the ticket and prove provenance; admission is still decided by the
// ticket row, never by the payload alone.
func (s *TicketService) CheckInByCredential(ctx context.Context, payload string) (*models.Ticket, error) {
	claims, err := credential.Decode(payload)
	if err != nil {
		util.CheckInsTotal.WithLabelValues("invalid_credential").Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredential, err)
	}

	ticket, err := s.store.GetTicketByID(ctx, claims.TicketID)
	if err != nil {
		util.CheckInsTotal.WithLabelValues(checkInOutcome(err)).Inc()
		return nil, err
	}
	if err := matchCredential(claims, ticket); err != nil {
		util.CheckInsTotal.WithLabelValues("invalid_credential").Inc()
		return nil, err
	}

	return s.CheckIn(ctx, claims.TicketID)
}

func matchCredential(claims credential.Claims, ticket *models.Ticket) error {
	if claims.TicketID != ticket.ID || claims.EventID != ticket.EventID || claims.UserID != ticket.UserID {
		return fmt.Errorf("%w: claims do not match ticket record", models.ErrInvalidCredential)
	}
	return nil
}

// GetTicket retrieves one ticket
func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.store.GetTicketByID(ctx, id)
}

// ListEventTickets retrieves the tickets issued for an event
func (s *TicketService) ListEventTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	if _, err := s.store.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.GetTicketsByEvent(ctx, eventID)
}

// ListUserTickets retrieves a buyer's tickets
func (s *TicketService) ListUserTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.store.GetTicketsByUser(ctx, userID)
}

// ListAttendees returns the distinct users holding tickets for an event
func (s *TicketService) ListAttendees(ctx context.Context, eventID string) ([]string, error) {
	if _, err := s.store.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.GetAttendees(ctx, eventID)
}

// TicketsSold reports how many seats an event has sold across ticket types
func (s *TicketService) TicketsSold(ctx context.Context, eventID string) (int, error) {
	if _, err := s.store.GetEventByID(ctx, eventID); err != nil {
		return 0, err
	}
	return s.store.CountTicketsSold(ctx, eventID)
}

func checkInOutcome(err error) string {
	switch err {
	case models.ErrTicketAlreadyUsed:
		return "already_used"
	case models.ErrTicketCancelled:
		return "ticket_cancelled"
	case models.ErrEventCancelled:
		return "event_cancelled"
	case models.ErrEventEnded:
		return "event_ended"
	case models.ErrTicketNotFound:
		return "not_found"
	default:
		return "error"
	}
}

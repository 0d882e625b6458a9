package service

import (
	"context"
	"fmt"
	"time"

	"ticketeer/internal/broker"
	"ticketeer/internal/models"
	"ticketeer/internal/store"
	"ticketeer/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxDescriptionLen = 300

// TicketTypeService manages an event's ticket classes on behalf of its
// organizer.
type TicketTypeService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	maxTypes  int
	logger    *zap.Logger
}

// NewTicketTypeService creates a new ticket type service
func NewTicketTypeService(store *store.Store, publisher *broker.EventPublisher, maxTypes int) *TicketTypeService {
	return &TicketTypeService{
		store:     store,
		publisher: publisher,
		maxTypes:  maxTypes,
		logger:    util.GetLogger(),
	}
}

// TicketTypeInput carries the organizer-editable fields
type TicketTypeInput struct {
	OrganizerID   string `json:"organizer_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PriceCents    int64  `json:"price_cents"`
	TotalQuantity int    `json:"total_quantity" binding:"required,min=1"`
}

// Create adds a ticket type to an event. Capacity rules: at most maxTypes
// types per event, and the aggregate total across types must fit within the
// event's guest limit.
func (s *TicketTypeService) Create(ctx context.Context, eventID string, in *TicketTypeInput) (*models.TicketType, error) {
	ctx, span := util.StartSpan(ctx, "TicketTypeService.Create")
	defer span.End()

	if err := validateTicketTypeInput(in); err != nil {
		return nil, err
	}

	event, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != in.OrganizerID {
		return nil, models.ErrNotOrganizer
	}
	if event.Cancelled {
		return nil, models.ErrEventCancelled
	}
	if !time.Now().UTC().Before(event.StartsAt()) {
		return nil, models.ErrEventAlreadyStarted
	}
	if event.GuestLimit <= 0 {
		return nil, fmt.Errorf("%w: event has no guest limit set", models.ErrInvalidTicketType)
	}

	count, err := s.store.CountTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if count >= s.maxTypes {
		return nil, models.ErrMaxTicketTypes
	}

	existing, err := s.store.SumTicketQuantities(ctx, eventID, "")
	if err != nil {
		return nil, err
	}
	if existing+in.TotalQuantity > event.GuestLimit {
		return nil, models.ErrExceedsEventLimit
	}

	tt := &models.TicketType{
		ID:                uuid.New().String(),
		EventID:           eventID,
		Name:              in.Name,
		Description:       in.Description,
		PriceCents:        in.PriceCents,
		TotalQuantity:     in.TotalQuantity,
		AvailableQuantity: in.TotalQuantity,
		SoldQuantity:      0,
		Status:            models.TicketTypeStatusAvailable,
	}
	if err := s.store.CreateTicketType(ctx, tt); err != nil {
		return nil, err
	}

	s.publishCreated(event, tt)

	s.logger.Info("Ticket type created",
		zap.String("ticket_type_id", tt.ID),
		zap.String("event_id", eventID),
		zap.String("name", tt.Name),
		zap.Int("total_quantity", tt.TotalQuantity))
	return tt, nil
}

// UpdateInput carries a partial ticket type update. A nil field is left
// untouched; a non-nil TotalQuantity triggers a locked resize.
type UpdateInput struct {
	OrganizerID   string  `json:"organizer_id" binding:"required"`
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	PriceCents    *int64  `json:"price_cents"`
	TotalQuantity *int    `json:"total_quantity"`
}

// Update edits a ticket type's metadata and optionally resizes it
func (s *TicketTypeService) Update(ctx context.Context, id string, in *UpdateInput) (*models.TicketType, error) {
	ctx, span := util.StartSpan(ctx, "TicketTypeService.Update")
	defer span.End()

	tt, err := s.store.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := s.store.GetEventByID(ctx, tt.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != in.OrganizerID {
		return nil, models.ErrNotOrganizer
	}

	name := tt.Name
	if in.Name != nil {
		name = *in.Name
	}
	description := tt.Description
	if in.Description != nil {
		description = *in.Description
	}
	priceCents := tt.PriceCents
	if in.PriceCents != nil {
		priceCents = *in.PriceCents
	}

	if err := validateTicketTypeInput(&TicketTypeInput{
		OrganizerID:   in.OrganizerID,
		Name:          name,
		Description:   description,
		PriceCents:    priceCents,
		TotalQuantity: tt.TotalQuantity,
	}); err != nil {
		return nil, err
	}

	if err := s.store.UpdateTicketTypeMeta(ctx, id, name, description, priceCents); err != nil {
		return nil, err
	}

	if in.TotalQuantity != nil && *in.TotalQuantity != tt.TotalQuantity {
		if *in.TotalQuantity < 1 {
			return nil, fmt.Errorf("%w: total quantity must be at least 1", models.ErrInvalidTicketType)
		}
		if err := s.store.ResizeTicketType(ctx, id, *in.TotalQuantity, event.GuestLimit); err != nil {
			return nil, err
		}
	}

	return s.store.GetTicketType(ctx, id)
}

// ListForEvent returns all ticket types for an event
func (s *TicketTypeService) ListForEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	if _, err := s.store.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.GetTicketTypesByEvent(ctx, eventID)
}

// CloseExpired force-closes sales for ticket types whose event has started.
// Runs on a schedule; safe to run concurrently with purchases because the
// purchase transaction re-checks the start instant under its own lock.
func (s *TicketTypeService) CloseExpired(ctx context.Context) error {
	closed, err := s.store.CloseStartedTicketTypes(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to close started ticket types: %w", err)
	}
	if closed > 0 {
		util.TicketTypesClosedTotal.Add(float64(closed))
		s.logger.Info("Closed ticket types for started events", zap.Int64("count", closed))
	}
	return nil
}

func (s *TicketTypeService) publishCreated(event *models.Event, tt *models.TicketType) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	evt := &models.TicketTypeCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTicketTypeCreated,
			Timestamp: time.Now(),
		},
		OrganizerID:    event.OrganizerID,
		EventRef:       event.ID,
		EventTitle:     event.Title,
		TicketTypeID:   tt.ID,
		TicketTypeName: tt.Name,
		PriceCents:     tt.PriceCents,
		TotalQuantity:  tt.TotalQuantity,
	}
	if err := s.publisher.PublishTicketTypeCreated(ctx, evt); err != nil {
		s.logger.Error("Failed to publish TicketTypeCreated event",
			zap.String("ticket_type_id", tt.ID),
			zap.Error(err))
	}
}

// validateTicketTypeInput checks field constraints that need no database
func validateTicketTypeInput(in *TicketTypeInput) error {
	if in == nil || in.Name == "" {
		return fmt.Errorf("%w: name is required", models.ErrInvalidTicketType)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", models.ErrInvalidTicketType)
	}
	if in.TotalQuantity <= 0 {
		return fmt.Errorf("%w: total quantity must be a positive integer", models.ErrInvalidTicketType)
	}
	if len(in.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", models.ErrInvalidTicketType, maxDescriptionLen)
	}
	return nil
}

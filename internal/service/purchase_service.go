package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketeer/internal/broker"
	"ticketeer/internal/credential"
	"ticketeer/internal/models"
	"ticketeer/internal/redisclient"
	"ticketeer/internal/store"
	"ticketeer/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const availabilityCacheTTL = 30 * time.Second

// PurchaseService is the transactional core: it validates carts, quotes
// prices, and converts confirmed carts into issued tickets.
type PurchaseService struct {
	store     *store.Store
	redis     *redisclient.Client
	publisher *broker.EventPublisher
	issuer    *credential.Issuer
	pricer    *Pricer
	logger    *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(
	store *store.Store,
	redis *redisclient.Client,
	publisher *broker.EventPublisher,
	issuer *credential.Issuer,
	pricer *Pricer,
) *PurchaseService {
	return &PurchaseService{
		store:     store,
		redis:     redis,
		publisher: publisher,
		issuer:    issuer,
		pricer:    pricer,
		logger:    util.GetLogger(),
	}
}

// CartLine is one requested ticket-type selection
type CartLine struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
}

// PurchaseRequest drives validation and the purchase transaction. It is
// transient; only its effects are persisted.
type PurchaseRequest struct {
	BuyerID string     `json:"buyer_id" binding:"required"`
	EventID string     `json:"event_id" binding:"required"`
	Lines   []CartLine `json:"cart_lines" binding:"required,min=1"`
}

// QuoteLine echoes one validated cart line with its server-side price
type QuoteLine struct {
	TicketTypeID string `json:"ticket_type_id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Quantity     int    `json:"quantity"`
}

// Quote is the pre-payment validation result returned to the client. It
// reserves nothing; the inventory it references may be gone by the time the
// payment completes.
type Quote struct {
	EventID     string      `json:"event_id"`
	Lines       []QuoteLine `json:"lines"`
	AmountCents int64       `json:"amount_cents"`
}

// PurchasedTicket is one issued seat in a purchase result
type PurchasedTicket struct {
	TicketID   string `json:"ticket_id"`
	Credential string `json:"credential"`
	QRCode     string `json:"qr_code"`
}

// TicketTypePurchase is the per-type slice of a purchase result
type TicketTypePurchase struct {
	TicketTypeID   string            `json:"ticket_type_id"`
	TicketTypeName string            `json:"ticket_type_name"`
	Quantity       int               `json:"quantity"`
	PurchaseDate   time.Time         `json:"purchase_date"`
	EventID        string            `json:"event_id"`
	EventTitle     string            `json:"event_title"`
	StartDate      time.Time         `json:"start_date"`
	StartTime      string            `json:"start_time"`
	Location       []string          `json:"location,omitempty"`
	MeetLink       string            `json:"meet_link,omitempty"`
	Tickets        []PurchasedTicket `json:"tickets"`
}

// PurchaseResult is returned after the purchase transaction commits
type PurchaseResult struct {
	Purchases []TicketTypePurchase `json:"tickets"`
}

// Quote validates a cart against current event and inventory state and
// returns the amount the provider should charge.
func (s *PurchaseService) Quote(ctx context.Context, req *PurchaseRequest) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Quote")
	defer span.End()

	if err := validateCart(req); err != nil {
		return nil, err
	}

	event, err := s.store.GetEventByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if err := purchasable(event, time.Now().UTC()); err != nil {
		return nil, err
	}

	quote := &Quote{EventID: req.EventID, Lines: make([]QuoteLine, 0, len(req.Lines))}
	priced := make([]PricedLine, 0, len(req.Lines))

	for _, line := range req.Lines {
		tt, err := s.store.GetTicketTypeForEvent(ctx, line.TicketTypeID, req.EventID)
		if err != nil {
			return nil, err
		}
		if tt.AvailableQuantity < line.Quantity {
			return nil, &models.InsufficientInventoryError{
				TicketTypeID: tt.ID,
				Name:         tt.Name,
				Requested:    line.Quantity,
				Available:    tt.AvailableQuantity,
			}
		}

		quote.Lines = append(quote.Lines, QuoteLine{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			PriceCents:   tt.PriceCents,
			Quantity:     line.Quantity,
		})
		priced = append(priced, PricedLine{PriceCents: tt.PriceCents, Quantity: line.Quantity})
	}

	quote.AmountCents = s.pricer.TotalCents(priced)
	util.QuotesIssuedTotal.Inc()
	return quote, nil
}

// PriceCart re-derives the chargeable amount for a cart from stored prices,
// without gating on availability. Used at confirmation time to cross-check
// the provider's charged amount.
func (s *PurchaseService) PriceCart(ctx context.Context, req *PurchaseRequest) (int64, error) {
	if err := validateCart(req); err != nil {
		return 0, err
	}

	priced := make([]PricedLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		tt, err := s.store.GetTicketTypeForEvent(ctx, line.TicketTypeID, req.EventID)
		if err != nil {
			return 0, err
		}
		priced = append(priced, PricedLine{PriceCents: tt.PriceCents, Quantity: line.Quantity})
	}
	return s.pricer.TotalCents(priced), nil
}

// Purchase atomically converts the cart into issued tickets. When a
// fulfillment key is present it is persisted in the same transaction, making
// the whole operation exactly-once per provider reference.
func (s *PurchaseService) Purchase(ctx context.Context, req *PurchaseRequest, fulfillment *store.FulfillmentKey) (*PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Purchase")
	defer span.End()

	if err := validateCart(req); err != nil {
		util.PurchasesFailedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	// Credentials are issued up front so nothing slow runs while inventory
	// rows are locked. On abort the generated ids are simply discarded.
	lines := make([]store.PurchaseLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		seeds := make([]store.TicketSeed, 0, line.Quantity)
		for i := 0; i < line.Quantity; i++ {
			ticketID := uuid.New().String()
			cred, err := s.issuer.Issue(ticketID, req.BuyerID, req.EventID)
			if err != nil {
				return nil, fmt.Errorf("failed to issue credential: %w", err)
			}
			seeds = append(seeds, store.TicketSeed{
				ID:         ticketID,
				Credential: cred.Payload,
				QRCode:     cred.QRCode,
			})
		}
		lines = append(lines, store.PurchaseLine{TicketTypeID: line.TicketTypeID, Seeds: seeds})
	}

	start := time.Now()
	outcome, err := s.store.Purchase(ctx, time.Now().UTC(), store.PurchaseParams{
		BuyerID:     req.BuyerID,
		EventID:     req.EventID,
		Lines:       lines,
		Fulfillment: fulfillment,
	})
	util.PurchaseTxLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.PurchasesCompletedTotal.Inc()

	result := &PurchaseResult{Purchases: make([]TicketTypePurchase, 0, len(outcome.Lines))}
	for _, line := range outcome.Lines {
		util.TicketsIssuedTotal.Add(float64(len(line.Tickets)))
		result.Purchases = append(result.Purchases, buildTypePurchase(outcome.Event, line))
	}

	s.afterPurchase(req.BuyerID, outcome)
	return result, nil
}

// afterPurchase runs the best-effort post-commit work: notification events
// and availability cache refresh. Failures here are logged and never reverse
// the committed purchase.
func (s *PurchaseService) afterPurchase(buyerID string, outcome *store.PurchaseOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, line := range outcome.Lines {
		issued := make([]models.IssuedTicket, 0, len(line.Tickets))
		var purchasedAt time.Time
		for _, t := range line.Tickets {
			issued = append(issued, models.IssuedTicket{TicketID: t.ID, Credential: t.Credential})
			purchasedAt = t.PurchasedAt
		}

		event := &models.TicketsIssuedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTicketsIssued,
				Timestamp: time.Now(),
			},
			BuyerID:        buyerID,
			EventRef:       outcome.Event.ID,
			EventTitle:     outcome.Event.Title,
			StartDate:      outcome.Event.StartDate,
			StartTime:      outcome.Event.StartTime,
			Location:       outcome.Event.Location,
			MeetLink:       outcome.Event.MeetLink,
			TicketTypeID:   line.TicketType.ID,
			TicketTypeName: line.TicketType.Name,
			Quantity:       len(line.Tickets),
			Tickets:        issued,
			PurchasedAt:    purchasedAt,
		}

		if err := s.publisher.PublishTicketsIssued(ctx, event); err != nil {
			s.logger.Error("Failed to publish TicketsIssued event",
				zap.String("buyer_id", buyerID),
				zap.String("ticket_type_id", line.TicketType.ID),
				zap.Error(err))
		}

		if err := s.redis.CacheAvailability(ctx, line.TicketType.ID,
			line.TicketType.AvailableQuantity, availabilityCacheTTL); err != nil {
			s.logger.Warn("Failed to refresh availability cache",
				zap.String("ticket_type_id", line.TicketType.ID),
				zap.Error(err))
		}
	}
}

// Availability reports a ticket type's remaining seats, serving the advisory
// cache when warm and falling back to the database. The figure is a snapshot;
// only the purchase transaction can reserve seats.
func (s *PurchaseService) Availability(ctx context.Context, ticketTypeID string) (int, error) {
	if available, ok, err := s.redis.GetCachedAvailability(ctx, ticketTypeID); err == nil && ok {
		return available, nil
	}

	tt, err := s.store.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}

	if err := s.redis.CacheAvailability(ctx, tt.ID, tt.AvailableQuantity, availabilityCacheTTL); err != nil {
		s.logger.Warn("Failed to cache availability",
			zap.String("ticket_type_id", tt.ID),
			zap.Error(err))
	}
	return tt.AvailableQuantity, nil
}

// SyncAvailabilityToRedis warms the advisory availability cache at startup
func (s *PurchaseService) SyncAvailabilityToRedis(ctx context.Context) error {
	types, err := s.store.ListTicketTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ticket types: %w", err)
	}

	for _, tt := range types {
		if err := s.redis.CacheAvailability(ctx, tt.ID, tt.AvailableQuantity, availabilityCacheTTL); err != nil {
			s.logger.Warn("Failed to cache availability",
				zap.String("ticket_type_id", tt.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("Availability cache warmed", zap.Int("count", len(types)))
	return nil
}

func buildTypePurchase(event *models.Event, line store.PurchasedLine) TicketTypePurchase {
	tickets := make([]PurchasedTicket, 0, len(line.Tickets))
	var purchasedAt time.Time
	for _, t := range line.Tickets {
		tickets = append(tickets, PurchasedTicket{
			TicketID:   t.ID,
			Credential: t.Credential,
			QRCode:     t.QRCode,
		})
		purchasedAt = t.PurchasedAt
	}

	p := TicketTypePurchase{
		TicketTypeID:   line.TicketType.ID,
		TicketTypeName: line.TicketType.Name,
		Quantity:       len(line.Tickets),
		PurchaseDate:   purchasedAt,
		EventID:        event.ID,
		EventTitle:     event.Title,
		StartDate:      event.StartDate,
		StartTime:      event.StartTime,
		Tickets:        tickets,
	}
	if len(event.Location) == 5 {
		p.Location = event.Location
	} else {
		p.MeetLink = event.MeetLink
	}
	return p
}

// validateCart rejects malformed carts before any transaction starts
func validateCart(req *PurchaseRequest) error {
	if req == nil || req.BuyerID == "" || req.EventID == "" {
		return fmt.Errorf("%w: missing buyer or event", models.ErrInvalidCart)
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: cart is empty", models.ErrInvalidCart)
	}
	for _, line := range req.Lines {
		if line.TicketTypeID == "" {
			return fmt.Errorf("%w: missing ticket type id", models.ErrInvalidCart)
		}
		if _, err := uuid.Parse(line.TicketTypeID); err != nil {
			return fmt.Errorf("%w: malformed ticket type id %q", models.ErrInvalidCart, line.TicketTypeID)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be a positive integer", models.ErrInvalidCart)
		}
	}
	return nil
}

// purchasable rejects events that cannot sell tickets at the given instant.
// Sales close at exactly the start instant.
func purchasable(event *models.Event, now time.Time) error {
	if event.Cancelled {
		return models.ErrEventCancelled
	}
	if !now.Before(event.StartsAt()) {
		return models.ErrEventAlreadyStarted
	}
	return nil
}

func failureReason(err error) string {
	var insufficient *models.InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_inventory"
	case errors.Is(err, models.ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, models.ErrEventCancelled):
		return "event_cancelled"
	case errors.Is(err, models.ErrEventAlreadyStarted):
		return "event_started"
	case errors.Is(err, models.ErrTicketTypeNotFound):
		return "ticket_type_not_found"
	case errors.Is(err, models.ErrInvalidCart):
		return "invalid_cart"
	case errors.Is(err, models.ErrAlreadyFulfilled):
		return "already_fulfilled"
	case errors.Is(err, errPreviouslyFailed):
		return "previously_failed"
	default:
		return "db_error"
	}
}

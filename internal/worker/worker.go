package worker

import (
	"context"

	"ticketeer/internal/broker"
	"ticketeer/internal/models"
	"ticketeer/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers purchase confirmations to buyers. Delivery is
// asynchronous and best-effort; the tickets are already committed.
type Notifier interface {
	SendTicketDelivery(ctx context.Context, event *models.TicketsIssuedEvent) error
	SendTicketTypeLive(ctx context.Context, event *models.TicketTypeCreatedEvent) error
}

// LogNotifier writes notifications to the log. Stands in for the mail
// sender in environments without an SMTP bridge.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) SendTicketDelivery(ctx context.Context, event *models.TicketsIssuedEvent) error {
	n.logger.Info("Ticket delivery notification",
		zap.String("buyer_id", event.BuyerID),
		zap.String("event_title", event.EventTitle),
		zap.String("ticket_type", event.TicketTypeName),
		zap.Int("quantity", event.Quantity))
	return nil
}

func (n *LogNotifier) SendTicketTypeLive(ctx context.Context, event *models.TicketTypeCreatedEvent) error {
	n.logger.Info("Ticket type live notification",
		zap.String("organizer_id", event.OrganizerID),
		zap.String("event_title", event.EventTitle),
		zap.String("ticket_type", event.TicketTypeName))
	return nil
}

// NotificationWorker consumes domain events off the ticket topic and fans
// them out: buyer notifications for issued tickets, operator alerts for
// reconciliation failures.
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		notifier: notifier,
		logger:   util.GetLogger(),
	}

	w.handler.OnTicketsIssued(w.handleTicketsIssued)
	w.handler.OnTicketTypeCreated(w.handleTicketTypeCreated)
	w.handler.OnReconciliationFailed(w.handleReconciliationFailed)

	return w
}

// Start begins consuming events. Blocks until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Notification worker started")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *NotificationWorker) Stop() {
	if w.consumer != nil {
		if err := w.consumer.Close(); err != nil {
			w.logger.Error("Failed to close consumer", zap.Error(err))
		}
	}
}

func (w *NotificationWorker) handleTicketsIssued(ctx context.Context, event *models.TicketsIssuedEvent) error {
	if err := w.notifier.SendTicketDelivery(ctx, event); err != nil {
		util.NotificationsSentTotal.WithLabelValues("failed").Inc()
		w.logger.Error("Failed to deliver ticket notification",
			zap.String("buyer_id", event.BuyerID),
			zap.String("event_ref", event.EventRef),
			zap.Error(err))
		return err
	}
	util.NotificationsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

func (w *NotificationWorker) handleTicketTypeCreated(ctx context.Context, event *models.TicketTypeCreatedEvent) error {
	if err := w.notifier.SendTicketTypeLive(ctx, event); err != nil {
		util.NotificationsSentTotal.WithLabelValues("failed").Inc()
		w.logger.Error("Failed to deliver ticket type notification",
			zap.String("organizer_id", event.OrganizerID),
			zap.Error(err))
		return err
	}
	util.NotificationsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

// handleReconciliationFailed routes financial discrepancies to the
// operational log. These need a human; they are never retried here.
func (w *NotificationWorker) handleReconciliationFailed(ctx context.Context, event *models.ReconciliationFailedEvent) error {
	w.logger.Error("ALERT: payment charged but tickets not issued",
		zap.String("provider", event.Provider),
		zap.String("provider_ref", event.ProviderRef),
		zap.String("buyer_id", event.BuyerID),
		zap.String("event_ref", event.EventRef),
		zap.Int64("amount_cents", event.AmountCents),
		zap.String("reason", event.Reason))
	return nil
}

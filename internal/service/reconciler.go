package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticketeer/internal/broker"
	"ticketeer/internal/models"
	"ticketeer/internal/redisclient"
	"ticketeer/internal/store"
	"ticketeer/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidSignature rejects webhook deliveries whose HMAC does not match
var ErrInvalidSignature = errors.New("webhook signature verification failed")

var errPreviouslyFailed = errors.New("reference previously failed fulfillment")

// fulfillmentLedger is the slice of the store the reconciler needs to settle
// redelivered confirmations.
type fulfillmentLedger interface {
	GetFulfillment(ctx context.Context, provider, providerRef string) (*models.PaymentFulfillment, error)
	RecordFailedFulfillment(ctx context.Context, provider, providerRef, userID, eventID string, amountCents int64) error
}

// failurePublisher emits the operational alert for a charge that moved money
// without producing tickets.
type failurePublisher interface {
	PublishReconciliationFailed(ctx context.Context, event *models.ReconciliationFailedEvent) error
}

// Reconciler bridges external payment confirmations to exactly one purchase
// per provider reference. Both the synchronous verify path and the webhook
// path funnel into Confirm.
type Reconciler struct {
	store         fulfillmentLedger
	redis         *redisclient.Client
	purchases     *PurchaseService
	publisher     failurePublisher
	verifiers     map[string]ProviderVerifier
	webhookSecret string
	claimTTL      time.Duration
	logger        *zap.Logger
}

// NewReconciler creates a new payment reconciler
func NewReconciler(
	store *store.Store,
	redis *redisclient.Client,
	purchases *PurchaseService,
	publisher *broker.EventPublisher,
	webhookSecret string,
	claimTTL time.Duration,
) *Reconciler {
	return &Reconciler{
		store:         store,
		redis:         redis,
		purchases:     purchases,
		publisher:     publisher,
		verifiers:     make(map[string]ProviderVerifier),
		webhookSecret: webhookSecret,
		claimTTL:      claimTTL,
		logger:        util.GetLogger(),
	}
}

// RegisterVerifier adds a payment provider
func (r *Reconciler) RegisterVerifier(v ProviderVerifier) {
	r.verifiers[v.Name()] = v
}

// Confirm applies one confirmed charge to the purchase engine. The provider
// reference is the idempotency key: redelivered confirmations return
// ErrAlreadyFulfilled without touching inventory.
func (r *Reconciler) Confirm(ctx context.Context, provider, ref string, req *PurchaseRequest) (*PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Confirm")
	defer span.End()

	verifier, ok := r.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", provider)
	}

	charge, err := verifier.VerifyCharge(ctx, ref)
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues(provider, "error").Inc()
		return nil, fmt.Errorf("charge verification failed: %w", err)
	}
	if !charge.Succeeded {
		util.PaymentVerificationsTotal.WithLabelValues(provider, "declined").Inc()
		return nil, models.ErrPaymentNotVerified
	}
	util.PaymentVerificationsTotal.WithLabelValues(provider, "success").Inc()

	// Settle redeliveries against the fulfillment record before any pricing
	// work: a fulfilled reference must short-circuit even if ticket prices
	// changed since, and a failed one must re-surface the failure instead of
	// masquerading as a duplicate.
	if f, err := r.store.GetFulfillment(ctx, provider, ref); err != nil {
		r.logger.Warn("Failed to look up fulfillment record",
			zap.String("provider", provider), zap.Error(err))
	} else if f != nil {
		if f.Status == models.FulfillmentStatusFulfilled {
			util.DuplicateConfirmationsTotal.WithLabelValues(provider).Inc()
			return nil, models.ErrAlreadyFulfilled
		}
		return nil, r.fail(ctx, provider, ref, req, charge, errPreviouslyFailed)
	}

	// Amounts come from our own price table, never from the client.
	expected, err := r.purchases.PriceCart(ctx, req)
	if err != nil {
		return nil, r.fail(ctx, provider, ref, req, charge, fmt.Errorf("failed to re-derive amount: %w", err))
	}
	if charge.AmountCents < expected {
		cause := fmt.Errorf("charged %d cents but cart prices at %d", charge.AmountCents, expected)
		return nil, r.fail(ctx, provider, ref, req, charge, cause)
	}

	// Fast-path duplicate filter. Redis being down only costs us the fast
	// path; the unique fulfillment row still guarantees exactly-once.
	claimed, err := r.redis.ClaimProviderRef(ctx, provider, ref, r.claimTTL)
	if err != nil {
		r.logger.Warn("Fulfillment claim check unavailable",
			zap.String("provider", provider), zap.Error(err))
		claimed = true
	}
	if !claimed {
		if dup := r.duplicateOutcome(ctx, provider, ref, req, charge); dup != nil {
			return nil, dup
		}
	}

	result, err := r.purchases.Purchase(ctx, req, &store.FulfillmentKey{
		Provider:    provider,
		ProviderRef: ref,
		UserID:      req.BuyerID,
		AmountCents: charge.AmountCents,
	})
	if errors.Is(err, models.ErrAlreadyFulfilled) {
		// Lost a race with a concurrent confirmation; the row decides
		// whether that attempt fulfilled or failed.
		if dup := r.duplicateOutcome(ctx, provider, ref, req, charge); dup != nil {
			return nil, dup
		}
		util.DuplicateConfirmationsTotal.WithLabelValues(provider).Inc()
		return nil, err
	}
	if err != nil {
		if failureReason(err) == "db_error" {
			// Transient; release the claim and let the provider redeliver.
			if rerr := r.redis.ReleaseProviderRef(ctx, provider, ref); rerr != nil {
				r.logger.Warn("Failed to release fulfillment claim", zap.Error(rerr))
			}
			return nil, fmt.Errorf("purchase failed, awaiting redelivery: %w", err)
		}
		return nil, r.fail(ctx, provider, ref, req, charge, err)
	}

	r.logger.Info("Charge fulfilled",
		zap.String("provider", provider),
		zap.String("provider_ref", ref),
		zap.String("buyer_id", req.BuyerID))
	return result, nil
}

// duplicateOutcome resolves a lost redis claim against the database record.
// A nil return means no record exists (e.g. a crashed earlier attempt) and
// the confirmation should proceed to the transaction.
func (r *Reconciler) duplicateOutcome(ctx context.Context, provider, ref string, req *PurchaseRequest, charge *Charge) error {
	f, err := r.store.GetFulfillment(ctx, provider, ref)
	if err != nil {
		r.logger.Warn("Failed to look up fulfillment record", zap.Error(err))
		return nil
	}
	if f == nil {
		return nil
	}
	if f.Status == models.FulfillmentStatusFulfilled {
		util.DuplicateConfirmationsTotal.WithLabelValues(provider).Inc()
		return models.ErrAlreadyFulfilled
	}
	// A previously failed reference stays failed; re-driving it is a manual
	// reconciliation decision, not a webhook retry.
	return r.fail(ctx, provider, ref, req, charge, errPreviouslyFailed)
}

// fail records and loudly surfaces a charge that moved money without
// producing tickets. This path is operational, not user-retryable: retrying
// the purchase blindly could double-charge the buyer.
func (r *Reconciler) fail(ctx context.Context, provider, ref string, req *PurchaseRequest, charge *Charge, cause error) error {
	util.ReconciliationFailuresTotal.WithLabelValues(provider, failureReason(cause)).Inc()

	if err := r.store.RecordFailedFulfillment(ctx, provider, ref, req.BuyerID, req.EventID, charge.AmountCents); err != nil {
		r.logger.Error("Failed to record failed fulfillment",
			zap.String("provider", provider),
			zap.String("provider_ref", ref),
			zap.Error(err))
	}

	event := &models.ReconciliationFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReconciliationFailed,
			Timestamp: time.Now(),
		},
		Provider:    provider,
		ProviderRef: ref,
		BuyerID:     req.BuyerID,
		EventRef:    req.EventID,
		AmountCents: charge.AmountCents,
		Reason:      cause.Error(),
	}
	if err := r.publisher.PublishReconciliationFailed(ctx, event); err != nil {
		r.logger.Error("Failed to publish ReconciliationFailed event", zap.Error(err))
	}

	r.logger.Error("Reconciliation failure: charge confirmed but purchase failed",
		zap.String("provider", provider),
		zap.String("provider_ref", ref),
		zap.String("buyer_id", req.BuyerID),
		zap.Int64("amount_cents", charge.AmountCents),
		zap.Error(cause))

	return &models.ReconciliationError{Provider: provider, ProviderRef: ref, Cause: cause}
}

// WebhookPayload is the normalized body the platform expects from provider
// webhook bridges.
type WebhookPayload struct {
	Provider  string     `json:"provider"`
	Reference string     `json:"reference"`
	BuyerID   string     `json:"buyer_id"`
	EventID   string     `json:"event_id"`
	Lines     []CartLine `json:"cart_lines"`
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body. A missing
// secret rejects everything rather than accepting everything.
func (r *Reconciler) VerifySignature(body []byte, signature string) bool {
	if r.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook verifies and applies an asynchronous provider confirmation
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte, signature string) (*PurchaseResult, error) {
	if !r.VerifySignature(body, signature) {
		return nil, ErrInvalidSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	if payload.Provider == "" || payload.Reference == "" {
		return nil, fmt.Errorf("webhook payload missing provider or reference")
	}

	req := &PurchaseRequest{
		BuyerID: payload.BuyerID,
		EventID: payload.EventID,
		Lines:   payload.Lines,
	}
	return r.Confirm(ctx, payload.Provider, payload.Reference, req)
}

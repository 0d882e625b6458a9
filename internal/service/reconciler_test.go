package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"ticketeer/internal/models"
	"ticketeer/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	charge *Charge
	err    error
}

func (s *stubVerifier) Name() string { return "paystack" }

func (s *stubVerifier) VerifyCharge(ctx context.Context, ref string) (*Charge, error) {
	return s.charge, s.err
}

type stubLedger struct {
	record      *models.PaymentFulfillment
	failedCalls int
}

func (s *stubLedger) GetFulfillment(ctx context.Context, provider, ref string) (*models.PaymentFulfillment, error) {
	return s.record, nil
}

func (s *stubLedger) RecordFailedFulfillment(ctx context.Context, provider, ref, userID, eventID string, amountCents int64) error {
	s.failedCalls++
	return nil
}

type stubFailurePublisher struct {
	events []*models.ReconciliationFailedEvent
}

func (s *stubFailurePublisher) PublishReconciliationFailed(ctx context.Context, e *models.ReconciliationFailedEvent) error {
	s.events = append(s.events, e)
	return nil
}

func confirmRequest() *PurchaseRequest {
	return &PurchaseRequest{
		BuyerID: "user-1",
		EventID: "event-1",
		Lines:   []CartLine{{TicketTypeID: "3f0c7a2e-9f43-4c5e-bf6a-8f3f2f1e0d9c", Quantity: 1}},
	}
}

func TestConfirmShortCircuitsFulfilledReference(t *testing.T) {
	// purchases and redis are deliberately nil: a redelivered confirmation
	// for a fulfilled reference must resolve against the fulfillment record
	// before any pricing or claim work, even if ticket prices changed since
	// the original charge.
	r := &Reconciler{
		store: &stubLedger{record: &models.PaymentFulfillment{
			Provider:    "paystack",
			ProviderRef: "ref-1",
			Status:      models.FulfillmentStatusFulfilled,
		}},
		verifiers: map[string]ProviderVerifier{
			"paystack": &stubVerifier{charge: &Charge{Ref: "ref-1", Succeeded: true, AmountCents: 5000}},
		},
		claimTTL: time.Minute,
		logger:   util.GetLogger(),
	}

	_, err := r.Confirm(context.Background(), "paystack", "ref-1", confirmRequest())
	assert.ErrorIs(t, err, models.ErrAlreadyFulfilled)
}

func TestConfirmResurfacesFailedReference(t *testing.T) {
	ledger := &stubLedger{record: &models.PaymentFulfillment{
		Provider:    "paystack",
		ProviderRef: "ref-2",
		Status:      models.FulfillmentStatusFailed,
	}}
	publisher := &stubFailurePublisher{}
	r := &Reconciler{
		store:     ledger,
		publisher: publisher,
		verifiers: map[string]ProviderVerifier{
			"paystack": &stubVerifier{charge: &Charge{Ref: "ref-2", Succeeded: true, AmountCents: 5000}},
		},
		claimTTL: time.Minute,
		logger:   util.GetLogger(),
	}

	// A failed reference must not come back as a quiet duplicate.
	_, err := r.Confirm(context.Background(), "paystack", "ref-2", confirmRequest())
	var recErr *models.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "ref-2", recErr.ProviderRef)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "ref-2", publisher.events[0].ProviderRef)
}

func TestConfirmRejectsDeclinedCharge(t *testing.T) {
	r := &Reconciler{
		store: &stubLedger{},
		verifiers: map[string]ProviderVerifier{
			"paystack": &stubVerifier{charge: &Charge{Ref: "ref-3", Succeeded: false}},
		},
		logger: util.GetLogger(),
	}

	_, err := r.Confirm(context.Background(), "paystack", "ref-3", confirmRequest())
	assert.ErrorIs(t, err, models.ErrPaymentNotVerified)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	r := &Reconciler{webhookSecret: "whsec_test"}
	body := []byte(`{"provider":"paystack","reference":"ref-123"}`)

	t.Run("accepts a valid signature", func(t *testing.T) {
		assert.True(t, r.VerifySignature(body, sign("whsec_test", body)))
	})

	t.Run("rejects a signature from the wrong secret", func(t *testing.T) {
		assert.False(t, r.VerifySignature(body, sign("whsec_other", body)))
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		sig := sign("whsec_test", body)
		tampered := []byte(`{"provider":"paystack","reference":"ref-999"}`)
		assert.False(t, r.VerifySignature(tampered, sig))
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		assert.False(t, r.VerifySignature(body, ""))
	})

	t.Run("rejects everything when no secret is configured", func(t *testing.T) {
		unconfigured := &Reconciler{}
		assert.False(t, unconfigured.VerifySignature(body, sign("", body)))
	})
}

func TestWebhookPayloadDecoding(t *testing.T) {
	raw := []byte(`{
		"provider": "flutterwave",
		"reference": "flw-42",
		"buyer_id": "user-7",
		"event_id": "event-3",
		"cart_lines": [
			{"ticket_type_id": "tt-1", "quantity": 2},
			{"ticket_type_id": "tt-2", "quantity": 1}
		]
	}`)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(raw, &payload))

	assert.Equal(t, "flutterwave", payload.Provider)
	assert.Equal(t, "flw-42", payload.Reference)
	assert.Equal(t, "user-7", payload.BuyerID)
	assert.Equal(t, "event-3", payload.EventID)
	require.Len(t, payload.Lines, 2)
	assert.Equal(t, "tt-1", payload.Lines[0].TicketTypeID)
	assert.Equal(t, 2, payload.Lines[0].Quantity)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	r := &Reconciler{webhookSecret: "whsec_test"}
	body := []byte(`{"provider":"paystack","reference":"ref-123"}`)

	_, err := r.HandleWebhook(context.Background(), body, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Charge is the normalized view of a provider's transaction record.
type Charge struct {
	Ref         string
	Succeeded   bool
	AmountCents int64
	Currency    string
}

// ProviderVerifier confirms a charge by reference against a payment
// provider. Implementations are network clients; they run outside any
// database transaction.
type ProviderVerifier interface {
	Name() string
	VerifyCharge(ctx context.Context, ref string) (*Charge, error)
}

const (
	providerPaystack    = "paystack"
	providerFlutterwave = "flutterwave"

	verifyTimeout = 10 * time.Second
)

// PaystackVerifier verifies charges against the Paystack transaction API
type PaystackVerifier struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewPaystackVerifier(secretKey string) *PaystackVerifier {
	return &PaystackVerifier{
		secretKey: secretKey,
		baseURL:   "https://api.paystack.co",
		client:    &http.Client{Timeout: verifyTimeout},
	}
}

func (v *PaystackVerifier) Name() string { return providerPaystack }

func (v *PaystackVerifier) VerifyCharge(ctx context.Context, ref string) (*Charge, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", v.baseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paystack verify returned status %d", resp.StatusCode)
	}

	var body struct {
		Status bool `json:"status"`
		Data   struct {
			Status   string `json:"status"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid paystack verify response: %w", err)
	}
	if !body.Status {
		return nil, fmt.Errorf("paystack verify rejected reference %s", ref)
	}

	// Paystack amounts are already in the smallest currency unit.
	return &Charge{
		Ref:         ref,
		Succeeded:   body.Data.Status == "success",
		AmountCents: body.Data.Amount,
		Currency:    body.Data.Currency,
	}, nil
}

// FlutterwaveVerifier verifies charges against the Flutterwave v3 API
type FlutterwaveVerifier struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewFlutterwaveVerifier(secretKey string) *FlutterwaveVerifier {
	return &FlutterwaveVerifier{
		secretKey: secretKey,
		baseURL:   "https://api.flutterwave.com",
		client:    &http.Client{Timeout: verifyTimeout},
	}
}

func (v *FlutterwaveVerifier) Name() string { return providerFlutterwave }

func (v *FlutterwaveVerifier) VerifyCharge(ctx context.Context, ref string) (*Charge, error) {
	url := fmt.Sprintf("%s/v3/transactions/%s/verify", v.baseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flutterwave verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flutterwave verify returned status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Status   string  `json:"status"`
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid flutterwave verify response: %w", err)
	}

	// Flutterwave amounts are in major currency units.
	return &Charge{
		Ref:         ref,
		Succeeded:   body.Status == "success" && body.Data.Status == "successful",
		AmountCents: int64(math.Round(body.Data.Amount * 100)),
		Currency:    body.Data.Currency,
	}, nil
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaystackVerifyCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":true,"data":{"status":"success","amount":7650,"currency":"NGN"}}`))
	}))
	defer srv.Close()

	v := NewPaystackVerifier("sk_test")
	v.baseURL = srv.URL

	charge, err := v.VerifyCharge(context.Background(), "ref-123")
	require.NoError(t, err)
	assert.True(t, charge.Succeeded)
	assert.Equal(t, int64(7650), charge.AmountCents)
	assert.Equal(t, "NGN", charge.Currency)
}

func TestPaystackVerifyChargeDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"status":"failed","amount":7650,"currency":"NGN"}}`))
	}))
	defer srv.Close()

	v := NewPaystackVerifier("sk_test")
	v.baseURL = srv.URL

	charge, err := v.VerifyCharge(context.Background(), "ref-123")
	require.NoError(t, err)
	assert.False(t, charge.Succeeded)
}

func TestPaystackVerifyChargeUnknownReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false}`))
	}))
	defer srv.Close()

	v := NewPaystackVerifier("sk_test")
	v.baseURL = srv.URL

	_, err := v.VerifyCharge(context.Background(), "ref-missing")
	assert.Error(t, err)
}

func TestFlutterwaveVerifyCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/transactions/flw-42/verify", r.URL.Path)
		w.Write([]byte(`{"status":"success","data":{"status":"successful","amount":76.50,"currency":"USD"}}`))
	}))
	defer srv.Close()

	v := NewFlutterwaveVerifier("sk_test")
	v.baseURL = srv.URL

	charge, err := v.VerifyCharge(context.Background(), "flw-42")
	require.NoError(t, err)
	assert.True(t, charge.Succeeded)
	// Major units converted to cents.
	assert.Equal(t, int64(7650), charge.AmountCents)
}

func TestFlutterwaveVerifyChargePending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"pending","amount":76.50,"currency":"USD"}}`))
	}))
	defer srv.Close()

	v := NewFlutterwaveVerifier("sk_test")
	v.baseURL = srv.URL

	charge, err := v.VerifyCharge(context.Background(), "flw-42")
	require.NoError(t, err)
	assert.False(t, charge.Succeeded)
}

func TestVerifyChargeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPaystackVerifier("sk_test")
	p.baseURL = srv.URL
	_, err := p.VerifyCharge(context.Background(), "ref-123")
	assert.Error(t, err)

	f := NewFlutterwaveVerifier("sk_test")
	f.baseURL = srv.URL
	_, err = f.VerifyCharge(context.Background(), "flw-42")
	assert.Error(t, err)
}

package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimProviderRef(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)
	ctx := context.Background()

	mock.ExpectSetNX("fulfillment:paystack:ref-1", "1", time.Hour).SetVal(true)
	claimed, err := client.ClaimProviderRef(ctx, "paystack", "ref-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second delivery of the same reference loses the claim.
	mock.ExpectSetNX("fulfillment:paystack:ref-1", "1", time.Hour).SetVal(false)
	claimed, err = client.ClaimProviderRef(ctx, "paystack", "ref-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseProviderRef(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)

	mock.ExpectDel("fulfillment:flutterwave:tx-9").SetVal(1)
	require.NoError(t, client.ReleaseProviderRef(context.Background(), "flutterwave", "tx-9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCachedAvailability(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)
	ctx := context.Background()

	mock.ExpectGet("availability:tt-1").SetVal("42")
	available, ok, err := client.GetCachedAvailability(ctx, "tt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, available)

	mock.ExpectGet("availability:tt-2").RedisNil()
	_, ok, err = client.GetCachedAvailability(ctx, "tt-2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

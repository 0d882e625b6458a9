package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an existing connection; used by tests with redismock.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ClaimProviderRef marks a provider charge reference as in-flight. It is a
// fast-path duplicate filter for webhook redelivery; the unique constraint on
// payment_fulfillments remains the authoritative guard.
// Returns false when the reference was already claimed.
func (c *Client) ClaimProviderRef(ctx context.Context, provider, ref string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fulfillmentKey(provider, ref), "1", ttl).Result()
}

// ReleaseProviderRef drops a claim so a retried confirmation reaches the
// database again after a transient purchase failure.
func (c *Client) ReleaseProviderRef(ctx context.Context, provider, ref string) error {
	return c.rdb.Del(ctx, fulfillmentKey(provider, ref)).Err()
}

// CacheAvailability stores an advisory availability snapshot for a ticket
// type. Quotes and listings may read it; the purchase transaction never does.
func (c *Client) CacheAvailability(ctx context.Context, ticketTypeID string, available int, ttl time.Duration) error {
	return c.rdb.Set(ctx, availabilityKey(ticketTypeID), available, ttl).Err()
}

// GetCachedAvailability reads the availability snapshot. The second return is
// false on a cache miss.
func (c *Client) GetCachedAvailability(ctx context.Context, ticketTypeID string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, availabilityKey(ticketTypeID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability entry for %s: %w", ticketTypeID, err)
	}
	return available, true, nil
}

func fulfillmentKey(provider, ref string) string {
	return fmt.Sprintf("fulfillment:%s:%s", provider, ref)
}

func availabilityKey(ticketTypeID string) string {
	return fmt.Sprintf("availability:%s", ticketTypeID)
}

// Package redisclient caches finalized idempotency responses. Completed
// records never change, so serving them from Redis ahead of the durable claim
// is safe; a miss always falls through to the store.
package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// NewClient creates a Redis client and verifies connectivity
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

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func responseKey(keyHash string) string {
	return "idempotency:response:" + keyHash
}

// GetResponse returns a cached finalized response for the key hash, if any
func (c *Client) GetResponse(ctx context.Context, keyHash string) (int, []byte, bool) {
	raw, err := c.rdb.Get(ctx, responseKey(keyHash)).Bytes()
	if err == redis.Nil {
		return 0, nil, false
	}
	if err != nil {
		c.logger.Warn("Replay cache read failed", zap.Error(err))
		return 0, nil, false
	}

	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.Warn("Replay cache entry corrupt", zap.Error(err))
		return 0, nil, false
	}
	return cached.Status, cached.Body, true
}

// SetResponse stores a finalized response with the record's TTL. Best-effort:
// a write failure only costs the fast path.
func (c *Client) SetResponse(ctx context.Context, keyHash string, statusCode int, body []byte, ttl time.Duration) {
	raw, err := json.Marshal(cachedResponse{Status: statusCode, Body: body})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, responseKey(keyHash), raw, ttl).Err(); err != nil {
		c.logger.Warn("Replay cache write failed", zap.Error(err))
	}
}

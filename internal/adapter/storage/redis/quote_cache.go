package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// QuoteCache implements ports.QuoteCache using Redis. Quote lifetime is
// enforced by the key TTL: an expired quote simply stops existing, so order
// creation against it fails the same way as against a never-issued one.
type QuoteCache struct {
	client *goredis.Client
	prefix string
}

// NewQuoteCache creates a new Redis-backed quote cache.
func NewQuoteCache(client *goredis.Client) *QuoteCache {
	return &QuoteCache{
		client: client,
		prefix: "quote:",
	}
}

// Put stores a quote with the given TTL.
func (c *QuoteCache) Put(ctx context.Context, quote *domain.Quote, ttl time.Duration) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+quote.ID.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis quote put: %w", err)
	}
	return nil
}

// Get retrieves a quote by id. Returns nil, nil when the quote does not
// exist or has been evicted by its TTL.
func (c *QuoteCache) Get(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	data, err := c.client.Get(ctx, c.prefix+id.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis quote get: %w", err)
	}

	quote := &domain.Quote{}
	if err := json.Unmarshal(data, quote); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	return quote, nil
}

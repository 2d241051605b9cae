package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwynne/curio/internal/domain/items"
)

// ItemReader is the read side of the item service the cache fronts.
type ItemReader interface {
	Get(ctx context.Context, tokenID int64) (*items.Item, error)
}

// ItemCache is a read-through Redis cache keyed by token id. It is never a
// second source of truth: writers invalidate on every mutation and the TTL
// bounds staleness if an invalidation is missed.
type ItemCache struct {
	client *redis.Client
	reader ItemReader
	ttl    time.Duration
	logger *slog.Logger
}

// NewItemCache creates a read-through item cache.
func NewItemCache(client *redis.Client, reader ItemReader, ttl time.Duration, logger *slog.Logger) *ItemCache {
	return &ItemCache{
		client: client,
		reader: reader,
		ttl:    ttl,
		logger: logger,
	}
}

func itemKey(tokenID int64) string {
	return fmt.Sprintf("item:%d", tokenID)
}

// Get returns the cached item or falls through to the reader and caches the
// result. Cache failures degrade to a direct read, never to an error.
func (c *ItemCache) Get(ctx context.Context, tokenID int64) (*items.Item, error) {
	key := itemKey(tokenID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var item items.Item
		if unmarshalErr := json.Unmarshal(data, &item); unmarshalErr == nil {
			return &item, nil
		}
		// Corrupt entry: drop it and fall through.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("item cache read failed", "tokenId", tokenID, "error", err)
	}

	item, err := c.reader.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if data, marshalErr := json.Marshal(item); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.logger.Warn("item cache write failed", "tokenId", tokenID, "error", setErr)
		}
	}
	return item, nil
}

// Invalidate drops the cached entry for a token. Called after every mutation
// that touches the token's state.
func (c *ItemCache) Invalidate(ctx context.Context, tokenID int64) {
	if err := c.client.Del(ctx, itemKey(tokenID)).Err(); err != nil {
		c.logger.Warn("item cache invalidation failed", "tokenId", tokenID, "error", err)
	}
}

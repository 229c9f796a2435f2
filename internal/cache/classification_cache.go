package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stocksense/stocksense/internal/config"
	"github.com/stocksense/stocksense/internal/domain"
)

const (
	classificationKeyPrefix     = "classification"
	classificationScanBatchSize = 100
)

// ClassificationCache memoizes SKU classifications, keyed by item and the
// as-of date the classification was computed for. Classifications are pure
// functions of history, so a same-day entry never goes stale within its TTL.
type ClassificationCache interface {
	Get(ctx context.Context, itemID string, asOf time.Time) (domain.SKUClassification, bool, error)
	Set(ctx context.Context, itemID string, asOf time.Time, classification domain.SKUClassification) error
	Invalidate(ctx context.Context, itemID string) error
	InvalidateAll(ctx context.Context) error
}

type redisClassificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopClassificationCache struct{}

func NewClassificationCache(cfg config.CacheConfig) (ClassificationCache, error) {
	if !cfg.Enabled {
		return &noopClassificationCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisClassificationCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopClassificationCache() ClassificationCache {
	return &noopClassificationCache{}
}

func (c *redisClassificationCache) Get(ctx context.Context, itemID string, asOf time.Time) (domain.SKUClassification, bool, error) {
	var out domain.SKUClassification

	payload, err := c.client.Get(ctx, buildClassificationKey(itemID, asOf)).Bytes()
	if err == redis.Nil {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, &out); err != nil {
		return out, false, fmt.Errorf("decode classification cache: %w", err)
	}

	return out, true, nil
}

func (c *redisClassificationCache) Set(ctx context.Context, itemID string, asOf time.Time, classification domain.SKUClassification) error {
	payload, err := json.Marshal(classification)
	if err != nil {
		return fmt.Errorf("encode classification cache: %w", err)
	}

	if err := c.client.Set(ctx, buildClassificationKey(itemID, asOf), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisClassificationCache) Invalidate(ctx context.Context, itemID string) error {
	prefix := fmt.Sprintf("%s:%s:", classificationKeyPrefix, itemID)
	return deleteKeysWithPrefix(ctx, c.client, prefix, classificationScanBatchSize)
}

func (c *redisClassificationCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, classificationKeyPrefix, classificationScanBatchSize)
}

func (n *noopClassificationCache) Get(ctx context.Context, itemID string, asOf time.Time) (domain.SKUClassification, bool, error) {
	return domain.SKUClassification{}, false, nil
}

func (n *noopClassificationCache) Set(ctx context.Context, itemID string, asOf time.Time, classification domain.SKUClassification) error {
	return nil
}

func (n *noopClassificationCache) Invalidate(ctx context.Context, itemID string) error {
	return nil
}

func (n *noopClassificationCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildClassificationKey(itemID string, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s", classificationKeyPrefix, itemID, asOf.Format("2006-01-02"))
}

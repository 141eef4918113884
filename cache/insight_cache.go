package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"
)

// InsightEntry is a cached demand insight for one product
type InsightEntry struct {
	ProductID   int64     `json:"product_id"`
	Summary     string    `json:"summary"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// InsightCache provides caching for generated demand insights
type InsightCache struct {
	redis *RedisClient
}

// NewInsightCache creates a new insight cache instance
func NewInsightCache(redis *RedisClient) *InsightCache {
	return &InsightCache{
		redis: redis,
	}
}

// GetInsight retrieves a cached insight for a product
// Returns the cached entry and true if found, nil and false otherwise
func (c *InsightCache) GetInsight(ctx context.Context, productID int64, dataHash string) (*InsightEntry, bool) {
	if c.redis == nil {
		return nil, false
	}

	cacheKey := fmt.Sprintf("insight:product:%d:%s", productID, dataHash)
	var entry InsightEntry

	if err := c.redis.Get(ctx, cacheKey, &entry); err != nil {
		return nil, false
	}

	return &entry, true
}

// SetInsight caches a generated insight for a product
func (c *InsightCache) SetInsight(ctx context.Context, productID int64, dataHash string, entry *InsightEntry, ttl time.Duration) error {
	if c.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	cacheKey := fmt.Sprintf("insight:product:%d:%s", productID, dataHash)
	return c.redis.Set(ctx, cacheKey, entry, ttl)
}

// SetCooldown sets a cooldown period for a product to prevent excessive LLM calls
func (c *InsightCache) SetCooldown(ctx context.Context, productID int64, ttl time.Duration) error {
	if c.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	cooldownKey := fmt.Sprintf("insight:cooldown:%d", productID)
	return c.redis.Set(ctx, cooldownKey, time.Now().Unix(), ttl)
}

// IsInCooldown checks if a product is in cooldown period
func (c *InsightCache) IsInCooldown(ctx context.Context, productID int64) bool {
	if c.redis == nil {
		return false
	}

	cooldownKey := fmt.Sprintf("insight:cooldown:%d", productID)
	var timestamp int64

	if err := c.redis.Get(ctx, cooldownKey, &timestamp); err != nil {
		return false
	}

	return timestamp > 0
}

// GenerateDataHash creates a hash from demand data to detect when conditions changed
func GenerateDataHash(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf("%x", hash[:8]) // Use first 8 bytes for shorter hash
}

// internal/service/price_cache.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"crypto-swap/internal/feed"
)

// ErrCacheMiss is returned when neither cache layer holds fresh prices.
var ErrCacheMiss = errors.New("cache miss")

const priceCacheKey = "prices:latest"

// KV is the subset of the redis client used by the service.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// PriceCache keeps the last fetched price records in memory and, when
// configured, in redis so that restarts and sibling instances skip the
// upstream fetch.
type PriceCache struct {
	redis    KV
	logger   *zap.Logger
	memCache *MemoryCache
	ttl      time.Duration
}

// MemoryCache holds a single price snapshot
type MemoryCache struct {
	mu       sync.RWMutex
	records  []feed.Record
	cachedAt time.Time
	maxAge   time.Duration
	now      func() time.Time
}

// NewPriceCache creates a price cache. kv may be nil for memory only.
func NewPriceCache(kv KV, ttl time.Duration, logger *zap.Logger) *PriceCache {
	return &PriceCache{
		redis:    kv,
		logger:   logger,
		memCache: NewMemoryCache(ttl),
		ttl:      ttl,
	}
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(maxAge time.Duration) *MemoryCache {
	return &MemoryCache{maxAge: maxAge, now: time.Now}
}

// Get returns cached records, checking memory first, then redis
func (pc *PriceCache) Get(ctx context.Context) ([]feed.Record, error) {
	if pc.ttl <= 0 {
		return nil, ErrCacheMiss
	}

	if records, ok := pc.memCache.Get(); ok {
		pc.logger.Debug("cache hit (memory)", zap.Int("records", len(records)))
		return records, nil
	}

	if pc.redis == nil {
		return nil, ErrCacheMiss
	}

	data, err := pc.redis.Get(ctx, priceCacheKey)
	if err != nil {
		pc.logger.Debug("cache miss", zap.Error(err))
		return nil, ErrCacheMiss
	}

	var records []feed.Record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		pc.logger.Warn("discarding unreadable cached prices", zap.Error(err))
		return nil, ErrCacheMiss
	}

	pc.logger.Debug("cache hit (redis)", zap.Int("records", len(records)))
	pc.memCache.Set(records)
	return records, nil
}

// Set stores records in both layers
func (pc *PriceCache) Set(ctx context.Context, records []feed.Record) error {
	if pc.ttl <= 0 {
		return nil
	}

	pc.memCache.Set(records)

	if pc.redis == nil {
		return nil
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal prices: %w", err)
	}

	if err := pc.redis.Set(ctx, priceCacheKey, data, pc.ttl); err != nil {
		pc.logger.Error("failed to cache prices in redis",
			zap.Error(err),
			zap.String("key", priceCacheKey))
		return err
	}

	return nil
}

// Invalidate drops the snapshot from both layers
func (pc *PriceCache) Invalidate(ctx context.Context) error {
	pc.memCache.Clear()
	if pc.redis == nil {
		return nil
	}
	return pc.redis.Delete(ctx, priceCacheKey)
}

// GetStats returns cache statistics
func (pc *PriceCache) GetStats() map[string]interface{} {
	pc.memCache.mu.RLock()
	defer pc.memCache.mu.RUnlock()

	return map[string]interface{}{
		"memory_cache_records": len(pc.memCache.records),
		"memory_cache_ttl":     pc.memCache.maxAge.String(),
		"redis_enabled":        pc.redis != nil,
	}
}

// Get returns the snapshot while it is younger than maxAge
func (mc *MemoryCache) Get() ([]feed.Record, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.records == nil || mc.now().Sub(mc.cachedAt) > mc.maxAge {
		return nil, false
	}
	return mc.records, true
}

// Set replaces the snapshot
func (mc *MemoryCache) Set(records []feed.Record) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.records = records
	mc.cachedAt = mc.now()
}

// Clear empties the cache
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.records = nil
}

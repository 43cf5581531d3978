// internal/service/price_cache_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crypto-swap/internal/feed"
	"crypto-swap/pkg/redis"
)

// memKV is an in-memory KV that mimics the redis client.
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	setErr  error
	setCall int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCall++
	if m.setErr != nil {
		return m.setErr
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memKV) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	_, exists := m.data[key]
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func sampleRecords() []feed.Record {
	at := time.Date(2023, 8, 29, 7, 10, 40, 0, time.UTC)
	return []feed.Record{
		{Currency: "ETH", Price: decimal.RequireFromString("1645.93373737"), Date: at},
		{Currency: "USD", Price: decimal.NewFromInt(1), Date: at},
		{Currency: "ATOM", Price: decimal.RequireFromString("7.18669"), Date: at},
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(time.Minute)
	mc.now = func() time.Time { return now }

	_, ok := mc.Get()
	assert.False(t, ok, "empty cache")

	mc.Set(sampleRecords())
	records, ok := mc.Get()
	require.True(t, ok)
	assert.Len(t, records, 3)

	now = now.Add(2 * time.Minute)
	_, ok = mc.Get()
	assert.False(t, ok, "expired snapshot")

	mc.Set(sampleRecords())
	mc.Clear()
	_, ok = mc.Get()
	assert.False(t, ok, "cleared snapshot")
}

func TestPriceCache_RedisRoundTrip(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()

	writer := NewPriceCache(kv, time.Minute, zap.NewNop())
	require.NoError(t, writer.Set(ctx, sampleRecords()))

	// a second instance sees the snapshot through redis only
	reader := NewPriceCache(kv, time.Minute, zap.NewNop())
	records, err := reader.Get(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "ETH", records[0].Currency)
	assert.True(t, records[0].Price.Equal(decimal.RequireFromString("1645.93373737")))
	assert.True(t, records[0].Date.Equal(sampleRecords()[0].Date))
}

func TestPriceCache_Misses(t *testing.T) {
	ctx := context.Background()

	t.Run("memory only", func(t *testing.T) {
		pc := NewPriceCache(nil, time.Minute, zap.NewNop())
		_, err := pc.Get(ctx)
		assert.ErrorIs(t, err, ErrCacheMiss)

		require.NoError(t, pc.Set(ctx, sampleRecords()))
		records, err := pc.Get(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("disabled by ttl", func(t *testing.T) {
		kv := newMemKV()
		pc := NewPriceCache(kv, 0, zap.NewNop())
		require.NoError(t, pc.Set(ctx, sampleRecords()))
		_, err := pc.Get(ctx)
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Zero(t, kv.setCall)
	})

	t.Run("unreadable redis value", func(t *testing.T) {
		kv := newMemKV()
		kv.data[priceCacheKey] = "{not json"
		pc := NewPriceCache(kv, time.Minute, zap.NewNop())
		_, err := pc.Get(ctx)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("invalidate", func(t *testing.T) {
		kv := newMemKV()
		pc := NewPriceCache(kv, time.Minute, zap.NewNop())
		require.NoError(t, pc.Set(ctx, sampleRecords()))
		require.NoError(t, pc.Invalidate(ctx))
		_, err := pc.Get(ctx)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}

func TestPriceCache_SetError(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("connection refused")
	pc := NewPriceCache(kv, time.Minute, zap.NewNop())

	err := pc.Set(context.Background(), sampleRecords())
	assert.Error(t, err)

	// memory layer still holds the snapshot
	records, err := pc.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)

	stats := pc.GetStats()
	assert.Equal(t, 3, stats["memory_cache_records"])
	assert.Equal(t, true, stats["redis_enabled"])
}

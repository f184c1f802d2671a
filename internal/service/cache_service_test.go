package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{ err error }

func (f failingCache) Get(ctx context.Context, key string, dest interface{}) error { return f.err }
func (f failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return f.err
}
func (f failingCache) DeleteByPattern(ctx context.Context, pattern string) error { return f.err }

func TestCacheServiceHitAndMiss(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCache(), metrics, 0, nil, true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", map[string]int{"a": 1}, 0))
	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))
}

func TestCacheServiceDisabledAndFailing(t *testing.T) {
	ctx := context.Background()

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	hit, err := nilSvc.Get(ctx, "k", nil)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilSvc.Invalidate(ctx, "calendar:*"))

	disabled := NewCacheService(newMemoryCache(), nil, time.Minute, nil, false)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Set(ctx, "k", 1, 0))

	broken := NewCacheService(failingCache{err: errors.New("redis down")}, nil, time.Minute, nil, true)
	_, err = broken.Get(ctx, "k", new(int))
	assert.Error(t, err)
	assert.Error(t, broken.Set(ctx, "k", 1, 0))
	assert.Error(t, broken.Invalidate(ctx, "calendar:*"))
}

func TestCacheServiceInvalidateDeduplicatesPatterns(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, time.Minute, nil, true)
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "calendar:room-1:2025-01-06", 1, 0))
	require.NoError(t, svc.Set(ctx, "calendar:room-2:2025-01-06", 2, 0))

	require.NoError(t, svc.Invalidate(ctx, "calendar:room-1:*", "calendar:room-1:*", "", "calendar:room-2:*"))

	assert.Equal(t, []string{"calendar:room-1:*", "calendar:room-2:*"}, store.invalidated)
	assert.Empty(t, store.items)
}

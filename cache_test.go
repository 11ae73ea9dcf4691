package salesbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-insights/salesbot/domain/model"
)

func TestDatasetCache(t *testing.T) {
	t.Parallel()

	t.Run("expires entries after the TTL", func(t *testing.T) {
		t.Parallel()
		cache := NewDatasetCache(time.Minute)
		clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return clock }

		cache.Put("f1", model.NewFrame(), nil, model.LoadStats{}, model.SourceSummary{})
		require.NotNil(t, cache.Get("f1"))

		clock = clock.Add(59 * time.Second)
		assert.NotNil(t, cache.Get("f1"), "still fresh")

		clock = clock.Add(2 * time.Second)
		assert.Nil(t, cache.Get("f1"), "expired entries are dropped")
		assert.Nil(t, cache.Get("f1"))
	})

	t.Run("invalidate removes the entry", func(t *testing.T) {
		t.Parallel()
		cache := NewDatasetCache(0)
		cache.Put("f1", model.NewFrame(), nil, model.LoadStats{}, model.SourceSummary{})
		cache.Invalidate("f1")
		assert.Nil(t, cache.Get("f1"))
	})

	t.Run("misses unknown folders", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, NewDatasetCache(0).Get("nope"))
	})

	t.Run("defaults the TTL", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, DefaultCacheTTL, NewDatasetCache(0).ttl)
		assert.Equal(t, DefaultCacheTTL, NewDatasetCache(-1).ttl)
	})
}

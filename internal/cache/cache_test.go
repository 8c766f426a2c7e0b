package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

var sampleHits = []storage.SearchHit{
	{ID: 7, Title: "Section 2485", Locator: "https://example.com/Document/S2485", Depth: 3, Score: 4.2, Snippet: "idling <b>limit</b>"},
	{ID: 9, Title: "Section 2480", Locator: "https://example.com/Document/S2480", Depth: 3, Score: 1.5},
}

func TestKeyDependsOnTermsAndLimit(t *testing.T) {
	a := Key([]string{"idl", "limit"}, 6)

	assert.Equal(t, a, Key([]string{"idl", "limit"}, 6))
	assert.NotEqual(t, a, Key([]string{"limit", "idl"}, 6))
	assert.NotEqual(t, a, Key([]string{"idl", "limit"}, 5))
	assert.Len(t, a, 32)
}

func TestMemoryHitAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", sampleHits))
	hits, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleHits, hits)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	require.NoError(t, m.Set(ctx, "k", sampleHits))

	hits, _, _ := m.Get(ctx, "k")
	hits[0].Title = "changed"

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "Section 2485", again[0].Title)
}

// Runs only when a Redis server is available.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	r := NewRedis(client, time.Minute)
	key := Key([]string{"cache", "test", time.Now().String()}, 6)
	t.Cleanup(func() { client.Del(ctx, r.generateKey(key)) })

	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, sampleHits))
	hits, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleHits, hits)
}

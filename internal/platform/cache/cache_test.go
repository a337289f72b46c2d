package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newTestCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, opts...), mr
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t, WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", payload{Name: "crp", Score: 50}, 0))
	assert.True(t, mr.Exists("test:k1"))

	var got payload
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, payload{Name: "crp", Score: 50}, got)
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)
	var got payload
	err := c.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_DefaultTTL(t *testing.T) {
	c, mr := newTestCache(t, WithDefaultTTL(time.Minute))
	require.NoError(t, c.Set(context.Background(), "k", 1, 0))
	assert.Equal(t, time.Minute, mr.TTL("optm:k"))

	mr.FastForward(2 * time.Minute)
	var v int
	assert.ErrorIs(t, c.Get(context.Background(), "k", &v), ErrCacheMiss)
}

func TestCache_ExplicitTTL(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Set(context.Background(), "k", 1, 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("optm:k"))
}

func TestCache_Delete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))

	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("optm:a"))
	assert.False(t, mr.Exists("optm:b"))
	assert.NoError(t, c.Delete(ctx))
}

func TestCache_DeleteByPrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "analysis:p1:a:b", 1, 0))
	require.NoError(t, c.Set(ctx, "analysis:p1:c:d", 2, 0))
	require.NoError(t, c.Set(ctx, "analysis:p2:a:b", 3, 0))

	n, err := c.DeleteByPrefix(ctx, "analysis:p1:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("optm:analysis:p2:a:b"))
	assert.False(t, mr.Exists("optm:analysis:p1:a:b"))
}

func TestCache_DeleteByPrefix_MatchesLiterally(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "analysis:north:p*:a", 1, 0))
	require.NoError(t, c.Set(ctx, "analysis:north:p1:a", 2, 0))
	require.NoError(t, c.Set(ctx, "analysis:north:[p]:a", 3, 0))
	require.NoError(t, c.Set(ctx, "analysis:north:p:a", 4, 0))

	n, err := c.DeleteByPrefix(ctx, "analysis:north:p*:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("optm:analysis:north:p1:a"))

	n, err = c.DeleteByPrefix(ctx, "analysis:north:[p]:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("optm:analysis:north:p:a"))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
	assert.Equal(t, "analysis:north:p-1:", escapeGlob("analysis:north:p-1:"))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

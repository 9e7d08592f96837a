package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/agentflow/pkg/adapters/redis"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSessionStoreContract(t, redis.NewFromClient(client))
}

// clock is a settable time source shared with the store.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	clk := &clock{now: time.Now()}
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithClock(clk.Now))
	ctx := context.Background()
	name := "session-ttl"

	data := domain.NewSessionData()
	data.SharedData.Data["foo"] = "bar"
	require.NoError(t, store.Save(ctx, name, data))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, name)

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, name)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	clk.Advance(2 * time.Second)
	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-session", domain.NewSessionData()))

	assert.True(t, mr.Exists("custom:app:my-session"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
	assert.Equal(t, "custom:app:", store.Prefix())

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-session")
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, store.Save(context.Background(), "work", domain.NewSessionData()))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"work"))
}

func TestRedisStore_DeleteRemovesIndexEntry(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "gone", domain.NewSessionData()))
	require.NoError(t, store.Delete(ctx, "gone"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, list, "gone")
}

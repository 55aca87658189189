package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
)

func newLock(t *testing.T, ttl, wait time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, ttl, wait), mr
}

var _ engine.Locker = (*Redis)(nil)

func TestLock_ExclusiveUntilUnlock(t *testing.T) {
	l, mr := newLock(t, time.Minute, 80*time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("escrow:lock:m1"))

	_, err = l.Lock(ctx, "m1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := l.Lock(ctx, "m2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, mr.Exists("escrow:lock:m1"))

	again, err := l.Lock(ctx, "m1")
	require.NoError(t, err)
	again()
}

func TestLock_UnlockDoesNotReleaseForeignToken(t *testing.T) {
	l, mr := newLock(t, time.Minute, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "m1")
	require.NoError(t, err)

	// TTL expirou e outra instância assumiu
	require.NoError(t, mr.Set("escrow:lock:m1", "someone-else"))
	unlock()

	v, err := mr.Get("escrow:lock:m1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestLock_WaitsForRelease(t *testing.T) {
	l, _ := newLock(t, time.Minute, time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "m1")
	require.NoError(t, err)
	go func() {
		time.Sleep(50 * time.Millisecond)
		unlock()
	}()

	second, err := l.Lock(ctx, "m1")
	require.NoError(t, err)
	second()
}

func TestLock_ChainedWithKeyedMutex(t *testing.T) {
	l, mr := newLock(t, time.Minute, time.Second)
	chain := engine.Chain(engine.NewKeyedMutex(), l)

	unlock, err := chain.Lock(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("escrow:lock:m1"))
	unlock()
	assert.False(t, mr.Exists("escrow:lock:m1"))
}

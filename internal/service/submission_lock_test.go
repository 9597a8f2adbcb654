package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSubmissionLockerExcludesConcurrentHolders(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	locker := NewSubmissionLocker(client, time.Second, testLogger())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 5)
	require.NoError(t, err)
	require.True(t, server.Exists("mooj:submission:5:lock"))

	_, err = locker.Lock(ctx, 5)
	require.ErrorIs(t, err, ErrSubmissionBusy)

	other, err := locker.Lock(ctx, 6)
	require.NoError(t, err)
	other()

	unlock()
	require.False(t, server.Exists("mooj:submission:5:lock"))

	again, err := locker.Lock(ctx, 5)
	require.NoError(t, err)
	again()
}

func TestSubmissionLockerExpiresAndKeepsForeignLocks(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	locker := NewSubmissionLocker(client, time.Second, testLogger())
	ctx := context.Background()

	stale, err := locker.Lock(ctx, 8)
	require.NoError(t, err)
	server.FastForward(2 * time.Second)

	current, err := locker.Lock(ctx, 8)
	require.NoError(t, err)

	// Releasing the expired holder must not free the new holder's lock.
	stale()
	require.True(t, server.Exists("mooj:submission:8:lock"))
	current()
	require.False(t, server.Exists("mooj:submission:8:lock"))
}

func TestNoopLockerWithoutRedis(t *testing.T) {
	locker := NewSubmissionLocker(nil, time.Second, testLogger())
	first, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	second, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	first()
	second()
}

func TestSubmissionLockerExtendsHeldLock(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	locker := NewSubmissionLocker(client, 300*time.Millisecond, testLogger())
	unlock, err := locker.Lock(context.Background(), 11)
	require.NoError(t, err)

	server.FastForward(200 * time.Millisecond)
	require.LessOrEqual(t, server.TTL("mooj:submission:11:lock"), 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return server.TTL("mooj:submission:11:lock") > 200*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)

	unlock()
	unlock()
	require.False(t, server.Exists("mooj:submission:11:lock"))
}

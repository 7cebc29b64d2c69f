package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), srv
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "ledger:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "ledger:test", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	unlock()
	unlock2, ok, err := locker.TryLock(ctx, "ledger:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	unlock2()
}

func TestLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, srv := newTestLocker(t)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "ledger:test", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "ledger:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	unlock()
	require.True(t, srv.Exists("ledger:test"))
}

func TestNewFailsWhenServerIsDown(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}

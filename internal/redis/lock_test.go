package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*DoctorLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewDoctorLocker(rdb, 5*time.Second), mr
}

func TestWithDoctorLock_RunsAndReleases(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	ran := false
	err := l.WithDoctorLock(ctx, "D1", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:doctor:D1"))
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:doctor:D1"))
}

func TestWithDoctorLock_ContentionFailsFast(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	err := l.WithDoctorLock(ctx, "D1", func(ctx context.Context) error {
		inner := l.WithDoctorLock(ctx, "D1", func(context.Context) error {
			t.Fatal("inner critical section must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		return l.WithDoctorLock(ctx, "D2", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestWithDoctorLock_DoesNotDeleteForeignToken(t *testing.T) {
	l, mr := newTestLocker(t)

	err := l.WithDoctorLock(context.Background(), "D1", func(context.Context) error {
		// lock expired and another process took it over
		require.NoError(t, mr.Set("lock:doctor:D1", "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get("lock:doctor:D1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithDoctorLock_PropagatesCallbackError(t *testing.T) {
	l, mr := newTestLocker(t)

	err := l.WithDoctorLock(context.Background(), "D1", func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, mr.Exists("lock:doctor:D1"))
}

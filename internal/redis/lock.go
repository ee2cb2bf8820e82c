package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("doctor schedule lock not acquired")

// DoctorLocker serializes every mutation of one doctor's schedule across
// processes. It never waits: a held lock fails with ErrLockNotAcquired.
type DoctorLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDoctorLocker(client *redis.Client, ttl time.Duration) *DoctorLocker {
	return &DoctorLocker{
		client: client,
		ttl:    ttl,
	}
}

func lockKey(doctorID string) string {
	return fmt.Sprintf("lock:doctor:%s", doctorID)
}

// WithDoctorLock runs fn while holding the doctor's lock. fn gets a context
// bounded by the lock TTL so it cannot outlive its ownership.
func (l *DoctorLocker) WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error {
	key := lockKey(doctorID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire doctor lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *DoctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}

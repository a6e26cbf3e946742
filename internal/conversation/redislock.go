package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/recordpilot/internal/logging"
)

// RedisLocker is a Locker backed by a Redis lease. The lease is refreshed
// while held so a slow model round-trip does not let it lapse.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	log    *logging.Logger
}

// NewRedisLocker creates a RedisLocker. ttl is the lease length and wait
// bounds how long Lock retries before giving up.
func NewRedisLocker(rdb redis.UniversalClient, ttl, wait time.Duration, log *logging.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 2 * time.Minute
	}
	if log == nil {
		log = logging.Nop()
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, wait: wait, log: log}
}

// Lock obtains the lease for key, retrying until wait elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	obtainCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(obtainCtx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("conversation busy: %w", err)
	}
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(l.ttl / 2)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := lock.Refresh(context.Background(), l.ttl, nil); err != nil {
					l.log.Warn("lock refresh failed", "key", key, "error", err)
					return
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("lock release failed", "key", key, "error", err)
		}
	}, nil
}

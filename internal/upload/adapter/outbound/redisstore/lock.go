package redisstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 25 * time.Millisecond

// unlockScript deletes the lock only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// refreshScript extends the lock only if we still own it.
var refreshScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// SessionLocker implements port.SessionLocker with SET NX PX.
// A held lock is renewed every third of its ttl until it is released.
type SessionLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

var _ port.SessionLocker = (*SessionLocker)(nil)

// NewSessionLocker builds a locker; ttl bounds how long a crashed holder blocks the session.
func NewSessionLocker(client redis.UniversalClient, ttl, wait time.Duration) *SessionLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SessionLocker{client: client, ttl: ttl, wait: wait}
}

func lockKey(sessionID string) string {
	return "upload:lock:" + sessionID
}

func (l *SessionLocker) Lock(ctx context.Context, sessionID string) (port.Unlock, error) {
	key := lockKey(sessionID)
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.keepAlive(key, owner, stop, done)

			var once sync.Once
			return func(ctx context.Context) error {
				once.Do(func() {
					close(stop)
					<-done
				})
				err := unlockScript.Run(ctx, l.client, []string{key}, owner).Err()
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, domain.ErrLocked
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// keepAlive renews the lock until stop is closed or ownership is lost.
func (l *SessionLocker) keepAlive(key, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := refreshScript.Run(ctx, l.client, []string{key}, owner, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			logger.Warnw("Failed to renew session lock", "key", key, "error", err.Error())
		case n == 0:
			logger.Warnw("Session lock lost before release", "key", key)
			return
		}
	}
}

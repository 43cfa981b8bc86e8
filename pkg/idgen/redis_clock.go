package idgen

import (
	"context"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// Clock abstracts the time source for the ID generator.
type Clock interface {
	// Now returns the current timestamp in milliseconds.
	Now() int64
}

// SystemClock uses the local system time.
type SystemClock struct{}

func (s *SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

const defaultClockTimeout = 200 * time.Millisecond

// RedisClock reads time from the Redis TIME command so that every node
// allocating record ids agrees on one clock.
type RedisClock struct {
	client  redis.UniversalClient
	timeout time.Duration
	local   Clock
}

func NewRedisClock(client redis.UniversalClient, timeout time.Duration) *RedisClock {
	if timeout <= 0 {
		timeout = defaultClockTimeout
	}
	return &RedisClock{
		client:  client,
		timeout: timeout,
		local:   &SystemClock{},
	}
}

// Now falls back to the local clock when Redis does not answer in time.
func (r *RedisClock) Now() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	res, err := r.client.Time(ctx).Result()
	if err != nil {
		logger.Warnw("Redis clock unavailable, using local time", "error", err)
		return r.local.Now()
	}
	return res.UnixMilli()
}

package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/redis/go-redis/v9"
)

// acquireScript is the whole admission read-modify-write for one client key.
// KEYS: hour buckets (HASH bucket -> count), outstanding tokens (ZSET token -> issued at ms).
// ARGV: bucket, hourly limit, concurrency limit, now ms, token ttl ms, oldest bucket kept,
// token id, hours key ttl s, tokens key ttl s.
var acquireScript = redis.NewScript(`
local hourly = tonumber(ARGV[2])
local concurrent = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
local oldest = tonumber(ARGV[6])

for _, field in ipairs(redis.call('HKEYS', KEYS[1])) do
	if tonumber(field) < oldest then
		redis.call('HDEL', KEYS[1], field)
	end
end

if hourly > 0 then
	local used = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
	if used >= hourly then
		return {0, 'hourly_limit_exceeded'}
	end
end

redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', now - ttl)
if concurrent > 0 then
	if redis.call('ZCARD', KEYS[2]) >= concurrent then
		return {0, 'concurrent_limit_exceeded'}
	end
end

redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('ZADD', KEYS[2], now, ARGV[7])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[8]))
redis.call('EXPIRE', KEYS[2], tonumber(ARGV[9]))
return {1, ''}
`)

// AdmissionStore implements port.AdmissionStore on Redis.
type AdmissionStore struct {
	client redis.UniversalClient
}

var _ port.AdmissionStore = (*AdmissionStore)(nil)

func NewAdmissionStore(client redis.UniversalClient) *AdmissionStore {
	return &AdmissionStore{client: client}
}

// Keys share a hash tag so the script stays on one cluster slot.
func hoursKey(key domain.ClientKey) string {
	return "upload:admission:{" + string(key) + "}:hours"
}

func tokensKey(key domain.ClientKey) string {
	return "upload:admission:{" + string(key) + "}:tokens"
}

func (s *AdmissionStore) TryAcquire(ctx context.Context, req domain.SlotRequest) (domain.SlotVerdict, error) {
	retainedBuckets := int64(req.Retention / time.Hour)
	if retainedBuckets < 1 {
		retainedBuckets = 1
	}
	tokenTTL := req.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 6 * time.Hour
	}

	res, err := acquireScript.Run(ctx, s.client,
		[]string{hoursKey(req.ClientKey), tokensKey(req.ClientKey)},
		req.HourBucket,
		req.HourlyLimit,
		req.ConcurrencyLimit,
		req.Now.UnixMilli(),
		tokenTTL.Milliseconds(),
		req.HourBucket-retainedBuckets+1,
		req.TokenID,
		int64(retainedBuckets*3600),
		int64(tokenTTL/time.Second)+1,
	).Slice()
	if err != nil {
		return domain.SlotVerdict{}, fmt.Errorf("admission script: %w", err)
	}
	if len(res) != 2 {
		return domain.SlotVerdict{}, fmt.Errorf("admission script: unexpected reply %v", res)
	}

	granted, _ := res[0].(int64)
	reason, _ := res[1].(string)
	return domain.SlotVerdict{Granted: granted == 1, Reason: domain.DenyReason(reason)}, nil
}

func (s *AdmissionStore) Release(ctx context.Context, key domain.ClientKey, tokenID string) error {
	return s.client.ZRem(ctx, tokensKey(key), tokenID).Err()
}

func (s *AdmissionStore) Outstanding(ctx context.Context, key domain.ClientKey, now time.Time, ttl time.Duration) (int, error) {
	minScore := "(" + strconv.FormatInt(now.Add(-ttl).UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, tokensKey(key), minScore, "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Package security implements the Redis-backed protection layer:
// request tracking, suspicious-activity accumulation, IP blocking and
// performance metrics. Every durable quantity lives in the shared
// key-value store; an earlier revision kept these in process-local maps
// and was replaced because unbounded map growth under a sustained
// attack is a memory-exhaustion vector.
//
// All components fail open: when the store is unreachable a protective
// check answers "allow" and logs, it never turns into a request error.
package security

import (
	"context"
	"time"

	"github.com/amitdubeyup/jobpay-backend/internal/cache"
)

// Store is the slice of the cache manager the security components
// consume. Tests substitute an in-memory fake.
type Store interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Increment(ctx context.Context, key string) (int64, error)
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HSetBatch(ctx context.Context, key string, fields map[string]string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys ...string) ([]interface{}, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error)
	ZRemRangeByScore(ctx context.Context, key, min, max string) error
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}

var _ Store = (*cache.CacheManager)(nil)

// Key namespaces. Counters and records carry their own TTLs so the
// key-space is self-limiting in steady state.
const (
	keyRequestMinute      = "request_count:minute:" // + ip + ":" + window
	keyRequestHour        = "request_count:hour:"   // + ip + ":" + window
	keySuspiciousAttempts = "suspicious:attempts:"  // + ip
	keySuspiciousMeta     = "suspicious:meta:"      // + ip
	keySuspiciousRecord   = "suspicious:record:"    // + ip
	keyBlockedIPs         = "blocked_ips"
	keyMetricPrefix       = "perf:metric:" // + ts + ":" + suffix
	keyMetricIndex        = "perf:index"
	keyAlertList          = "perf:alerts"
	keyHourlyStats        = "perf:stats:" // + hour window
)

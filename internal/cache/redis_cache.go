package cache

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/amitdubeyup/jobpay-backend/configs"

	"github.com/go-redis/redis/v8"
)

// ErrUnavailable is returned by every operation while the Redis
// connection is down. Callers are expected to treat it as a signal to
// fall back to their documented fail-open default, never to surface it
// to the end user.
var ErrUnavailable = errors.New("cache unavailable")

const opTimeout = 5 * time.Second

// CacheManager wraps the shared Redis connection. All security state
// (counters, block records, suspicious records, metrics) lives here;
// nothing is mirrored into process memory, so a sustained attack cannot
// grow the heap.
type CacheManager struct {
	redisClient *redis.Client
	ctx         context.Context
}

var (
	instance *CacheManager
	once     sync.Once
)

func GetCacheManager() *CacheManager {
	once.Do(func() {
		instance = &CacheManager{ctx: context.Background()}
		instance.initialize()
	})
	return instance
}

func (cm *CacheManager) initialize() {
	opts, err := redis.ParseURL(configs.AppConfig.RedisURL)
	if err != nil {
		opts = &redis.Options{
			Addr:     configs.AppConfig.RedisURL,
			Password: "", // no password set
			DB:       0,  // use default DB
		}
	}

	cm.redisClient = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(cm.ctx, opTimeout)
	defer cancel()

	if err := cm.redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection failed, running in degraded mode: %v", err)
		cm.redisClient = nil
	} else {
		log.Println("Redis connection established successfully")
	}
}

func (cm *CacheManager) IsAvailable() bool {
	return cm.redisClient != nil
}

func (cm *CacheManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = cm.ctx
	}
	return context.WithTimeout(ctx, opTimeout)
}

// GetValue returns the raw value and whether the key exists.
func (cm *CacheManager) GetValue(ctx context.Context, key string) (string, bool, error) {
	if cm.redisClient == nil {
		return "", false, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()

	val, err := cm.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (cm *CacheManager) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.Set(ctx, key, value, ttl).Err()
}

func (cm *CacheManager) Delete(ctx context.Context, keys ...string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.Del(ctx, keys...).Err()
}

func (cm *CacheManager) Increment(ctx context.Context, key string) (int64, error) {
	if cm.redisClient == nil {
		return 0, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.Incr(ctx, key).Result()
}

// IncrementWithTTL increments the counter and (re)sets its TTL as one
// pipelined unit, so a counter can never survive without an expiry.
func (cm *CacheManager) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if cm.redisClient == nil {
		return 0, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()

	pipe := cm.redisClient.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

func (cm *CacheManager) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.Expire(ctx, key, ttl).Err()
}

func (cm *CacheManager) HSet(ctx context.Context, key, field, value string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.HSet(ctx, key, field, value).Err()
}

func (cm *CacheManager) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if cm.redisClient == nil {
		return "", false, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()

	val, err := cm.redisClient.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (cm *CacheManager) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if cm.redisClient == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.HGetAll(ctx, key).Result()
}

func (cm *CacheManager) HDel(ctx context.Context, key string, fields ...string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.HDel(ctx, key, fields...).Err()
}

func (cm *CacheManager) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	if cm.redisClient == nil {
		return 0, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.HIncrBy(ctx, key, field, incr).Result()
}

// HSetBatch writes every field of the hash in a single pipeline round
// trip. Used for bulk imports.
func (cm *CacheManager) HSetBatch(ctx context.Context, key string, fields map[string]string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()

	pipe := cm.redisClient.TxPipeline()
	for field, value := range fields {
		pipe.HSet(ctx, key, field, value)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (cm *CacheManager) Keys(ctx context.Context, pattern string) ([]string, error) {
	if cm.redisClient == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.Keys(ctx, pattern).Result()
}

// MGet returns one entry per key; entries for missing keys are nil.
func (cm *CacheManager) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if cm.redisClient == nil {
		return nil, ErrUnavailable
	}
	if len(keys) == 0 {
		return nil, nil
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.MGet(ctx, keys...).Result()
}

func (cm *CacheManager) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err()
}

func (cm *CacheManager) ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error) {
	if cm.redisClient == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: min, Max: max}).Result()
}

func (cm *CacheManager) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.ZRemRangeByScore(ctx, key, min, max).Err()
}

func (cm *CacheManager) LPush(ctx context.Context, key string, values ...string) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()

	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return cm.redisClient.LPush(ctx, key, args...).Err()
}

func (cm *CacheManager) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if cm.redisClient == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.LRange(ctx, key, start, stop).Result()
}

func (cm *CacheManager) LTrim(ctx context.Context, key string, start, stop int64) error {
	if cm.redisClient == nil {
		return ErrUnavailable
	}
	ctx, cancel := cm.withTimeout(ctx)
	defer cancel()
	return cm.redisClient.LTrim(ctx, key, start, stop).Err()
}

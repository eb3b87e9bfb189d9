package security

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amitdubeyup/jobpay-backend/internal/cache"
)

// fakeClock lets tests cross window boundaries without sleeping.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// fakeStore is an in-memory stand-in for the Redis cache manager. TTLs
// are honored against the fake clock. Setting unavailable simulates a
// Redis outage.
type fakeStore struct {
	clock       *fakeClock
	unavailable bool

	values map[string]string
	expiry map[string]time.Time
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
	lists  map[string][]string
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{
		clock:  clock,
		values: make(map[string]string),
		expiry: make(map[string]time.Time),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		lists:  make(map[string][]string),
	}
}

func (s *fakeStore) expired(key string) bool {
	exp, ok := s.expiry[key]
	if !ok {
		return false
	}
	if s.clock.Now().After(exp) {
		delete(s.values, key)
		delete(s.hashes, key)
		delete(s.expiry, key)
		return true
	}
	return false
}

func (s *fakeStore) GetValue(_ context.Context, key string) (string, bool, error) {
	if s.unavailable {
		return "", false, cache.ErrUnavailable
	}
	if s.expired(key) {
		return "", false, nil
	}
	val, ok := s.values[key]
	return val, ok, nil
}

func (s *fakeStore) SetValue(_ context.Context, key, value string, ttl time.Duration) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	s.values[key] = value
	if ttl > 0 {
		s.expiry[key] = s.clock.Now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, keys ...string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	for _, key := range keys {
		delete(s.values, key)
		delete(s.hashes, key)
		delete(s.expiry, key)
	}
	return nil
}

func (s *fakeStore) Increment(_ context.Context, key string) (int64, error) {
	if s.unavailable {
		return 0, cache.ErrUnavailable
	}
	s.expired(key)
	current, _ := strconv.ParseInt(s.values[key], 10, 64)
	current++
	s.values[key] = strconv.FormatInt(current, 10)
	return current, nil
}

func (s *fakeStore) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.Increment(ctx, key)
	if err != nil {
		return 0, err
	}
	s.expiry[key] = s.clock.Now().Add(ttl)
	return count, nil
}

func (s *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	s.expiry[key] = s.clock.Now().Add(ttl)
	return nil
}

func (s *fakeStore) HSet(_ context.Context, key, field, value string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	s.expired(key)
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	s.hashes[key][field] = value
	return nil
}

func (s *fakeStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	if s.unavailable {
		return "", false, cache.ErrUnavailable
	}
	if s.expired(key) {
		return "", false, nil
	}
	val, ok := s.hashes[key][field]
	return val, ok, nil
}

func (s *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if s.unavailable {
		return nil, cache.ErrUnavailable
	}
	if s.expired(key) {
		return map[string]string{}, nil
	}
	result := make(map[string]string, len(s.hashes[key]))
	for field, value := range s.hashes[key] {
		result[field] = value
	}
	return result, nil
}

func (s *fakeStore) HDel(_ context.Context, key string, fields ...string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	for _, field := range fields {
		delete(s.hashes[key], field)
	}
	return nil
}

func (s *fakeStore) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	if s.unavailable {
		return 0, cache.ErrUnavailable
	}
	s.expired(key)
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	current, _ := strconv.ParseInt(s.hashes[key][field], 10, 64)
	current += incr
	s.hashes[key][field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (s *fakeStore) HSetBatch(ctx context.Context, key string, fields map[string]string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	for field, value := range fields {
		s.HSet(ctx, key, field, value)
	}
	return nil
}

func (s *fakeStore) Keys(_ context.Context, pattern string) ([]string, error) {
	if s.unavailable {
		return nil, cache.ErrUnavailable
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range s.values {
		if s.expired(key) {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fakeStore) MGet(_ context.Context, keys ...string) ([]interface{}, error) {
	if s.unavailable {
		return nil, cache.ErrUnavailable
	}
	result := make([]interface{}, len(keys))
	for i, key := range keys {
		if s.expired(key) {
			result[i] = nil
			continue
		}
		if val, ok := s.values[key]; ok {
			result[i] = val
		}
	}
	return result, nil
}

func (s *fakeStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	if s.zsets[key] == nil {
		s.zsets[key] = make(map[string]float64)
	}
	s.zsets[key][member] = score
	return nil
}

func (s *fakeStore) ZRangeByScore(_ context.Context, key, min, max string) ([]string, error) {
	if s.unavailable {
		return nil, cache.ErrUnavailable
	}
	lo := parseScore(min, false)
	hi := parseScore(max, true)

	type entry struct {
		member string
		score  float64
	}
	var entries []entry
	for member, score := range s.zsets[key] {
		if score >= lo && score <= hi {
			entries = append(entries, entry{member, score})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })

	members := make([]string, len(entries))
	for i, e := range entries {
		members[i] = e.member
	}
	return members, nil
}

func (s *fakeStore) ZRemRangeByScore(_ context.Context, key, min, max string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	lo := parseScore(min, false)
	hi := parseScore(max, true)
	for member, score := range s.zsets[key] {
		if score >= lo && score <= hi {
			delete(s.zsets[key], member)
		}
	}
	return nil
}

func (s *fakeStore) LPush(_ context.Context, key string, values ...string) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	for _, value := range values {
		s.lists[key] = append([]string{value}, s.lists[key]...)
	}
	return nil
}

func (s *fakeStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	if s.unavailable {
		return nil, cache.ErrUnavailable
	}
	list := s.lists[key]
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		return []string{}, nil
	}
	return append([]string{}, list[start:stop+1]...), nil
}

func (s *fakeStore) LTrim(_ context.Context, key string, start, stop int64) error {
	if s.unavailable {
		return cache.ErrUnavailable
	}
	trimmed, _ := s.LRange(context.Background(), key, start, stop)
	s.lists[key] = trimmed
	return nil
}

func parseScore(raw string, upper bool) float64 {
	switch raw {
	case "-inf":
		return -1 << 62
	case "+inf":
		return 1 << 62
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if upper {
			return 1 << 62
		}
		return -1 << 62
	}
	return val
}

var _ Store = (*fakeStore)(nil)

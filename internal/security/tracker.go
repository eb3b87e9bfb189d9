package security

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/amitdubeyup/jobpay-backend/configs"
)

// TrackResult is the per-request verdict of the tracker.
type TrackResult struct {
	Blocked      bool  `json:"blocked"`
	DDoS         bool  `json:"ddos"`
	RequestCount int64 `json:"request_count"`
}

// LimitStatus is the advisory view used for X-RateLimit-* headers.
type LimitStatus struct {
	ShouldLimit bool  `json:"should_limit"`
	Remaining   int   `json:"remaining"`
	ResetTimeMs int64 `json:"reset_time_ms"`
}

// RequestTracker keeps fixed minute/hour window counters per client IP
// in the shared store. Counters carry their window duration as TTL, so
// stale windows expire on their own.
type RequestTracker struct {
	store  Store
	ledger *SuspiciousLedger
	cfg    configs.SecurityConfig
	now    func() time.Time
}

func NewRequestTracker(store Store, ledger *SuspiciousLedger, cfg configs.SecurityConfig) *RequestTracker {
	return &RequestTracker{
		store:  store,
		ledger: ledger,
		cfg:    cfg,
		now:    time.Now,
	}
}

func minuteKey(ip string, window int64) string {
	return fmt.Sprintf("%s%s:%d", keyRequestMinute, ip, window)
}

func hourKey(ip string, window int64) string {
	return fmt.Sprintf("%s%s:%d", keyRequestHour, ip, window)
}

// TrackRequest counts the request against the client's minute and hour
// windows and reports whether either quota or the DDoS threshold was
// crossed. The TTL is re-set on every increment; the redundant writes
// are cheaper than racing over who sets it first. On store failure the
// tracker fails open.
func (t *RequestTracker) TrackRequest(ctx context.Context, ip string) TrackResult {
	nowMs := t.now().UnixMilli()
	minuteWindow := nowMs / 60000
	hourWindow := nowMs / 3600000

	minuteCount, err := t.store.IncrementWithTTL(ctx, minuteKey(ip, minuteWindow), time.Minute)
	if err != nil {
		log.Printf("Request tracking unavailable, allowing %s: %v", ip, err)
		return TrackResult{}
	}
	hourCount, err := t.store.IncrementWithTTL(ctx, hourKey(ip, hourWindow), time.Hour)
	if err != nil {
		log.Printf("Request tracking unavailable, allowing %s: %v", ip, err)
		return TrackResult{}
	}

	result := TrackResult{
		Blocked:      minuteCount > int64(t.cfg.MaxRequestsPerMinute) || hourCount > int64(t.cfg.MaxRequestsPerHour),
		DDoS:         minuteCount > int64(t.cfg.DDoSThreshold),
		RequestCount: minuteCount,
	}

	if result.DDoS {
		t.ledger.AddToSuspiciousIPs(ctx, ip, fmt.Sprintf("DDoS pattern: %d requests in current minute (hour: %d)", minuteCount, hourCount))
	} else if result.Blocked {
		t.ledger.AddToSuspiciousIPs(ctx, ip, fmt.Sprintf("Rate limit exceeded: %d requests in current minute, %d in current hour", minuteCount, hourCount))
	}

	return result
}

// ShouldRateLimit is a read-only check against the current minute
// window; it never increments and is safe to call for header hints.
func (t *RequestTracker) ShouldRateLimit(ctx context.Context, ip string) LimitStatus {
	nowMs := t.now().UnixMilli()
	minuteWindow := nowMs / 60000
	resetTime := (minuteWindow + 1) * 60000

	status := LimitStatus{
		Remaining:   t.cfg.MaxRequestsPerMinute,
		ResetTimeMs: resetTime,
	}

	raw, found, err := t.store.GetValue(ctx, minuteKey(ip, minuteWindow))
	if err != nil {
		log.Printf("Rate limit check unavailable for %s: %v", ip, err)
		return LimitStatus{Remaining: t.cfg.MaxRequestsPerMinute, ResetTimeMs: resetTime}
	}
	if !found {
		return status
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return status
	}

	remaining := t.cfg.MaxRequestsPerMinute - int(count)
	if remaining < 0 {
		remaining = 0
	}
	status.Remaining = remaining
	status.ShouldLimit = count > int64(t.cfg.MaxRequestsPerMinute)
	return status
}

package security

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/amitdubeyup/jobpay-backend/configs"
)

func testSecurityConfig() configs.SecurityConfig {
	return configs.SecurityConfig{
		MaxRequestsPerMinute: 500,
		MaxRequestsPerHour:   5000,
		DDoSThreshold:        1000,
		SuspiciousThreshold:  5,
		AutoBlockMinutes:     60,
		SlowRequestMs:        1000,
		VerySlowRequestMs:    5000,
	}
}

// newTestTracker wires a tracker, ledger and registry against the fake
// store with a shared clock.
func newTestTracker(t *testing.T, clock *fakeClock, store *fakeStore) (*RequestTracker, *SuspiciousLedger, *BlockRegistry) {
	t.Helper()
	cfg := testSecurityConfig()

	registry := NewBlockRegistry(store)
	registry.now = clock.Now

	ledger := NewSuspiciousLedger(store, registry, cfg)
	ledger.now = clock.Now

	tracker := NewRequestTracker(store, ledger, cfg)
	tracker.now = clock.Now

	return tracker, ledger, registry
}

func TestTrackRequest_CountsMonotonicallyWithinWindow(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, _, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		result := tracker.TrackRequest(ctx, "10.0.0.1")
		if result.RequestCount != int64(i) {
			t.Fatalf("expected count %d on call %d, got %d", i, i, result.RequestCount)
		}
		if result.Blocked || result.DDoS {
			t.Fatalf("unexpected block at %d requests", i)
		}
	}
}

func TestTrackRequest_ResetsAcrossMinuteBoundary(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, _, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tracker.TrackRequest(ctx, "10.0.0.2")
	}

	clock.Advance(61 * time.Second)

	result := tracker.TrackRequest(ctx, "10.0.0.2")
	if result.RequestCount != 1 {
		t.Fatalf("expected fresh window to start at 1, got %d", result.RequestCount)
	}
}

func TestTrackRequest_BlocksAfterMinuteQuota(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, ledger, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	var last TrackResult
	for i := 0; i < 501; i++ {
		last = tracker.TrackRequest(ctx, "1.2.3.4")
	}

	if !last.Blocked {
		t.Fatalf("expected 501st request to be blocked, got %+v", last)
	}
	if last.DDoS {
		t.Fatalf("501 requests should not register as DDoS")
	}

	record := ledger.GetSuspiciousRecord(ctx, "1.2.3.4")
	if record == nil {
		t.Fatal("expected a suspicious record after quota breach")
	}
	if !strings.Contains(strings.Join(record.Reasons, " "), "501") {
		t.Fatalf("expected reason to mention the count, got %v", record.Reasons)
	}
}

func TestTrackRequest_DetectsDDoSBurst(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, ledger, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	var last TrackResult
	for i := 0; i < 1001; i++ {
		last = tracker.TrackRequest(ctx, "5.6.7.8")
	}

	if !last.DDoS {
		t.Fatalf("expected DDoS flag at 1001 requests, got %+v", last)
	}

	record := ledger.GetSuspiciousRecord(ctx, "5.6.7.8")
	if record == nil {
		t.Fatal("expected a suspicious record for DDoS burst")
	}
}

func TestTrackRequest_HourQuotaBlocksIndependently(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, _, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	// Spread 5001 requests over many minutes so the minute quota never
	// trips but the hour quota does.
	var last TrackResult
	for i := 0; i < 5001; i++ {
		last = tracker.TrackRequest(ctx, "9.9.9.9")
		if i%400 == 399 {
			clock.Advance(time.Minute)
		}
	}

	if !last.Blocked {
		t.Fatalf("expected hour quota to block, got %+v", last)
	}
}

func TestTrackRequest_FailsOpenWhenStoreUnavailable(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	store.unavailable = true
	tracker, _, _ := newTestTracker(t, clock, store)

	result := tracker.TrackRequest(context.Background(), "10.0.0.3")
	if result.Blocked || result.DDoS || result.RequestCount != 0 {
		t.Fatalf("expected fail-open zero result, got %+v", result)
	}
}

func TestShouldRateLimit_DoesNotIncrement(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, _, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	tracker.TrackRequest(ctx, "10.0.0.4")
	tracker.TrackRequest(ctx, "10.0.0.4")

	status := tracker.ShouldRateLimit(ctx, "10.0.0.4")
	if status.ShouldLimit {
		t.Fatal("should not limit at 2 requests")
	}
	if status.Remaining != 498 {
		t.Fatalf("expected 498 remaining, got %d", status.Remaining)
	}

	// Read-only: the count must not have moved.
	result := tracker.TrackRequest(ctx, "10.0.0.4")
	if result.RequestCount != 3 {
		t.Fatalf("expected count 3 after advisory check, got %d", result.RequestCount)
	}
}

func TestShouldRateLimit_ResetTimeIsNextMinuteBoundary(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, _, _ := newTestTracker(t, clock, store)

	status := tracker.ShouldRateLimit(context.Background(), "10.0.0.5")
	nowMs := clock.Now().UnixMilli()
	expected := (nowMs/60000 + 1) * 60000
	if status.ResetTimeMs != expected {
		t.Fatalf("expected reset at %d, got %d", expected, status.ResetTimeMs)
	}
	if status.Remaining != 500 {
		t.Fatalf("expected full quota for unseen client, got %d", status.Remaining)
	}
}

func TestShouldRateLimit_FailsOpenWhenStoreUnavailable(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	store.unavailable = true
	tracker, _, _ := newTestTracker(t, clock, store)

	status := tracker.ShouldRateLimit(context.Background(), "10.0.0.6")
	if status.ShouldLimit {
		t.Fatal("expected fail-open advisory result")
	}
	if status.Remaining != 500 {
		t.Fatalf("expected full quota on outage, got %d", status.Remaining)
	}
}

func TestTrackRequest_SeparateClientsDoNotInterfere(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock)
	tracker, _, _ := newTestTracker(t, clock, store)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		tracker.TrackRequest(ctx, fmt.Sprintf("172.16.0.%d", i))
	}

	result := tracker.TrackRequest(ctx, "172.16.0.0")
	if result.RequestCount != 2 {
		t.Fatalf("expected per-client count 2, got %d", result.RequestCount)
	}
}

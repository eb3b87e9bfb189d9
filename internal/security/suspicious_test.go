package security

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) (*SuspiciousLedger, *BlockRegistry, *fakeStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := newFakeStore(clock)

	registry := NewBlockRegistry(store)
	registry.now = clock.Now

	ledger := NewSuspiciousLedger(store, registry, testSecurityConfig())
	ledger.now = clock.Now

	return ledger, registry, store, clock
}

func TestTrackSuspiciousActivity_EscalatesAtThreshold(t *testing.T) {
	ledger, registry, store, clock := newTestLedger(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		ledger.TrackSuspiciousActivity(ctx, "1.2.3.4", fmt.Sprintf("incident %d", i))
		if registry.IsBlocked(ctx, "1.2.3.4") {
			t.Fatalf("unexpected block after %d incidents", i)
		}
	}

	ledger.TrackSuspiciousActivity(ctx, "1.2.3.4", "incident 5")

	if !registry.IsBlocked(ctx, "1.2.3.4") {
		t.Fatal("expected block after 5 incidents")
	}

	// Exactly one 60-minute temporary block with the latest reason.
	records := registry.GetBlockedIPs(ctx)
	if len(records) != 1 {
		t.Fatalf("expected exactly one block record, got %d", len(records))
	}
	record := records[0]
	if !record.IsTemporary {
		t.Fatal("escalation block must be temporary")
	}
	if record.Reason != "incident 5" {
		t.Fatalf("expected latest description as reason, got %q", record.Reason)
	}
	wantExpiry := clock.Now().UnixMilli() + (60 * time.Minute).Milliseconds()
	if record.ExpiresAt != wantExpiry {
		t.Fatalf("expected 60-minute block, expires %d want %d", record.ExpiresAt, wantExpiry)
	}

	// Counter and metadata reset after escalation.
	if _, found, _ := store.GetValue(ctx, keySuspiciousAttempts+"1.2.3.4"); found {
		t.Fatal("expected attempt counter to be deleted after escalation")
	}
	meta, _ := store.HGetAll(ctx, keySuspiciousMeta+"1.2.3.4")
	if len(meta) != 0 {
		t.Fatal("expected metadata to be deleted after escalation")
	}
}

func TestTrackSuspiciousActivity_WindowIsNotSliding(t *testing.T) {
	ledger, registry, _, clock := newTestLedger(t)
	ctx := context.Background()

	// Incidents spread past the 1-hour window from the FIRST incident
	// must not accumulate: the counter dies an hour after creation even
	// while activity continues.
	ledger.TrackSuspiciousActivity(ctx, "2.3.4.5", "incident 1")
	clock.Advance(50 * time.Minute)
	ledger.TrackSuspiciousActivity(ctx, "2.3.4.5", "incident 2")
	clock.Advance(15 * time.Minute) // 65 min after first incident

	ledger.TrackSuspiciousActivity(ctx, "2.3.4.5", "incident 3")
	ledger.TrackSuspiciousActivity(ctx, "2.3.4.5", "incident 4")
	ledger.TrackSuspiciousActivity(ctx, "2.3.4.5", "incident 5")

	if registry.IsBlocked(ctx, "2.3.4.5") {
		t.Fatal("incidents across expired windows must not escalate")
	}
}

func TestTrackSuspiciousActivity_MetadataExpiresWithCounter(t *testing.T) {
	ledger, _, store, clock := newTestLedger(t)
	ctx := context.Background()

	ledger.TrackSuspiciousActivity(ctx, "9.10.11.12", "incident 1")
	clock.Advance(30 * time.Minute)
	ledger.TrackSuspiciousActivity(ctx, "9.10.11.12", "incident 2")

	// Both keys share the window armed at the first incident; the
	// second incident must not extend the metadata past the counter.
	clock.Advance(31 * time.Minute)
	if _, found, _ := store.GetValue(ctx, keySuspiciousAttempts+"9.10.11.12"); found {
		t.Fatal("expected attempt counter to expire after the window")
	}
	meta, _ := store.HGetAll(ctx, keySuspiciousMeta+"9.10.11.12")
	if len(meta) != 0 {
		t.Fatalf("expected metadata to expire with the counter, got %v", meta)
	}
}

func TestTrackSuspiciousActivity_RecordsMetadata(t *testing.T) {
	ledger, registry, _, _ := newTestLedger(t)
	ctx := context.Background()

	ledger.TrackSuspiciousActivity(ctx, "3.4.5.6", "SQL injection attempt")

	attempts := registry.GetSuspiciousActivity(ctx)
	if len(attempts) != 1 {
		t.Fatalf("expected one suspicious entry, got %d", len(attempts))
	}
	entry := attempts[0]
	if entry.IP != "3.4.5.6" || entry.Attempts != 1 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Description != "SQL injection attempt" {
		t.Fatalf("expected latest description, got %q", entry.Description)
	}
	if entry.LastAttempt == 0 {
		t.Fatal("expected last attempt timestamp")
	}
}

func TestAddToSuspiciousIPs_AccumulatesReasonsAndSeverity(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ledger.AddToSuspiciousIPs(ctx, "4.5.6.7", fmt.Sprintf("reason %d", i))
	}

	record := ledger.GetSuspiciousRecord(ctx, "4.5.6.7")
	if record == nil {
		t.Fatal("expected a suspicious record")
	}
	if record.Count != 5 || len(record.Reasons) != 5 {
		t.Fatalf("expected 5 accumulated reasons, got %+v", record)
	}
	if record.Severity != SeverityMedium {
		t.Fatalf("expected medium severity at count 5, got %s", record.Severity)
	}

	ledger.AddToSuspiciousIPs(ctx, "4.5.6.7", "reason 6")
	record = ledger.GetSuspiciousRecord(ctx, "4.5.6.7")
	if record.Severity != SeverityHigh {
		t.Fatalf("expected high severity at count 6, got %s", record.Severity)
	}
}

func TestAddToSuspiciousIPs_DoesNotAutoBlock(t *testing.T) {
	ledger, registry, _, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ledger.AddToSuspiciousIPs(ctx, "5.6.7.8", "rate limit exceeded")
	}

	if registry.IsBlocked(ctx, "5.6.7.8") {
		t.Fatal("the record path must never block on its own")
	}
}

func TestSuspicionMechanismsAreIndependent(t *testing.T) {
	ledger, _, store, _ := newTestLedger(t)
	ctx := context.Background()

	ledger.TrackSuspiciousActivity(ctx, "6.7.8.9", "counter path")
	ledger.AddToSuspiciousIPs(ctx, "6.7.8.9", "record path")

	if _, found, _ := store.GetValue(ctx, keySuspiciousAttempts+"6.7.8.9"); !found {
		t.Fatal("expected attempt counter to exist")
	}
	if record := ledger.GetSuspiciousRecord(ctx, "6.7.8.9"); record == nil || record.Count != 1 {
		t.Fatal("expected independent suspicious record with count 1")
	}
}

func TestAddToSuspiciousIPs_RestartsOnMalformedRecord(t *testing.T) {
	ledger, _, store, _ := newTestLedger(t)
	ctx := context.Background()

	store.SetValue(ctx, keySuspiciousRecord+"7.8.9.10", "{broken", 24*time.Hour)

	ledger.AddToSuspiciousIPs(ctx, "7.8.9.10", "fresh reason")

	record := ledger.GetSuspiciousRecord(ctx, "7.8.9.10")
	if record == nil || record.Count != 1 || len(record.Reasons) != 1 {
		t.Fatalf("expected record to restart from scratch, got %+v", record)
	}
}

func TestTrackSuspiciousActivity_FailsOpenWhenStoreUnavailable(t *testing.T) {
	ledger, registry, store, _ := newTestLedger(t)
	store.unavailable = true
	ctx := context.Background()

	// Must not panic or block anything.
	for i := 0; i < 10; i++ {
		ledger.TrackSuspiciousActivity(ctx, "8.9.10.11", "during outage")
	}
	if registry.IsBlocked(ctx, "8.9.10.11") {
		t.Fatal("no escalation possible during outage")
	}
}

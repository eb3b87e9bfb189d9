package security

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/amitdubeyup/jobpay-backend/configs"
)

const (
	attemptWindow = time.Hour
	recordTTL     = 24 * time.Hour

	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SuspiciousRecord accumulates the reasons a client has looked
// suspicious over the last 24 hours. It never blocks on its own; the
// attempt counter in TrackSuspiciousActivity drives escalation.
type SuspiciousRecord struct {
	IP        string   `json:"ip"`
	Reasons   []string `json:"reasons"`
	FirstSeen int64    `json:"first_seen"`
	LastSeen  int64    `json:"last_seen"`
	Count     int      `json:"count"`
	Severity  string   `json:"severity"`
}

// SuspiciousLedger tracks per-client suspicion and escalates repeat
// offenders to a temporary block through the registry.
type SuspiciousLedger struct {
	store    Store
	registry *BlockRegistry
	cfg      configs.SecurityConfig
	now      func() time.Time
}

func NewSuspiciousLedger(store Store, registry *BlockRegistry, cfg configs.SecurityConfig) *SuspiciousLedger {
	return &SuspiciousLedger{
		store:    store,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}
}

// TrackSuspiciousActivity records one incident for the client. The
// attempt counter and its metadata get their 1-hour TTL only on the
// first increment, so the suspicion window is capped at an hour from
// the first incident rather than sliding forever, and both keys die
// together. Reaching the threshold produces exactly one temporary
// block and resets the counter.
func (l *SuspiciousLedger) TrackSuspiciousActivity(ctx context.Context, ip, description string) {
	counterKey := keySuspiciousAttempts + ip
	metaKey := keySuspiciousMeta + ip

	attempts, err := l.store.Increment(ctx, counterKey)
	if err != nil {
		log.Printf("Failed to track suspicious activity for %s: %v", ip, err)
		return
	}

	l.store.HSet(ctx, metaKey, "last_attempt", strconv.FormatInt(l.now().UnixMilli(), 10))
	l.store.HSet(ctx, metaKey, "description", description)

	if attempts == 1 {
		// The TTLs land in a round trip separate from the increment; a
		// crash in between leaves keys without an expiry until the
		// threshold resets them. IncrementWithTTL would close that gap
		// but re-arms the TTL on every call, turning the fixed one-hour
		// window into a sliding one.
		l.store.Expire(ctx, counterKey, attemptWindow)
		l.store.Expire(ctx, metaKey, attemptWindow)
	}

	log.Printf("Suspicious activity from %s (%d/%d): %s", ip, attempts, l.cfg.SuspiciousThreshold, description)

	if attempts >= int64(l.cfg.SuspiciousThreshold) {
		l.registry.BlockIP(ctx, ip, description, time.Duration(l.cfg.AutoBlockMinutes)*time.Minute)
		if err := l.store.Delete(ctx, counterKey, metaKey); err != nil {
			log.Printf("Failed to reset suspicion state for %s: %v", ip, err)
		}
	}
}

// AddToSuspiciousIPs maintains the richer per-client record with the
// full reason history and a severity derived from the incident count.
// Its 24-hour TTL slides on every write. Independent of the attempt
// counter above.
func (l *SuspiciousLedger) AddToSuspiciousIPs(ctx context.Context, ip, reason string) {
	key := keySuspiciousRecord + ip
	nowMs := l.now().UnixMilli()

	record := SuspiciousRecord{IP: ip, FirstSeen: nowMs}
	if raw, found, err := l.store.GetValue(ctx, key); err != nil {
		log.Printf("Failed to read suspicious record for %s: %v", ip, err)
		return
	} else if found {
		// An unparseable record starts over; consistent with treating
		// malformed payloads as absent everywhere else.
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			record = SuspiciousRecord{IP: ip, FirstSeen: nowMs}
		}
	}

	record.Reasons = append(record.Reasons, reason)
	record.Count++
	record.LastSeen = nowMs
	if record.Count > 5 {
		record.Severity = SeverityHigh
	} else {
		record.Severity = SeverityMedium
	}

	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("Failed to marshal suspicious record for %s: %v", ip, err)
		return
	}
	if err := l.store.SetValue(ctx, key, string(data), recordTTL); err != nil {
		log.Printf("Failed to store suspicious record for %s: %v", ip, err)
	}
}

// GetSuspiciousRecord returns the accumulated record for one client,
// or nil when none exists.
func (l *SuspiciousLedger) GetSuspiciousRecord(ctx context.Context, ip string) *SuspiciousRecord {
	raw, found, err := l.store.GetValue(ctx, keySuspiciousRecord+ip)
	if err != nil || !found {
		return nil
	}
	var record SuspiciousRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil
	}
	return &record
}

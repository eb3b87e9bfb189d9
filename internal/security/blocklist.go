package security

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"
)

// BlockRecord is the durable block entry for one client IP. A record
// with ExpiresAt == 0 is permanent and only goes away through an
// explicit unblock.
type BlockRecord struct {
	IP          string `json:"ip"`
	Reason      string `json:"reason"`
	BlockedAt   int64  `json:"blocked_at"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	IsTemporary bool   `json:"is_temporary"`
}

// SuspiciousAttempt is the admin-facing view of the escalation counter.
type SuspiciousAttempt struct {
	IP          string `json:"ip"`
	Attempts    int64  `json:"attempts"`
	LastAttempt int64  `json:"last_attempt"`
	Description string `json:"description"`
}

// BlockStats aggregates the current block and suspicion key-space.
type BlockStats struct {
	TotalBlocked    int `json:"total_blocked"`
	TemporaryBlocks int `json:"temporary_blocks"`
	PermanentBlocks int `json:"permanent_blocks"`
	SuspiciousIPs   int `json:"suspicious_ips"`
}

// BlockRegistry owns the authoritative block/unblock decisions. All
// records live in a single Redis hash keyed by client IP; expired
// temporary blocks are removed lazily the next time they are observed.
type BlockRegistry struct {
	store Store
	now   func() time.Time
}

func NewBlockRegistry(store Store) *BlockRegistry {
	return &BlockRegistry{store: store, now: time.Now}
}

// BlockIP writes a block record. A duration of zero means permanent.
func (r *BlockRegistry) BlockIP(ctx context.Context, ip, reason string, duration time.Duration) {
	nowMs := r.now().UnixMilli()
	record := BlockRecord{
		IP:          ip,
		Reason:      reason,
		BlockedAt:   nowMs,
		IsTemporary: duration > 0,
	}
	if duration > 0 {
		record.ExpiresAt = nowMs + duration.Milliseconds()
	}

	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("Failed to marshal block record for %s: %v", ip, err)
		return
	}
	if err := r.store.HSet(ctx, keyBlockedIPs, ip, string(data)); err != nil {
		log.Printf("Failed to block IP %s: %v", ip, err)
		return
	}
	log.Printf("Blocked IP %s (temporary=%v): %s", ip, record.IsTemporary, reason)
}

// IsBlocked reports whether the IP currently has an active block. A
// temporary block whose expiry has passed is unblocked as a side effect
// and reported as absent.
func (r *BlockRegistry) IsBlocked(ctx context.Context, ip string) bool {
	raw, found, err := r.store.HGet(ctx, keyBlockedIPs, ip)
	if err != nil {
		log.Printf("Block lookup failed for %s, allowing request: %v", ip, err)
		return false
	}
	if !found {
		return false
	}

	var record BlockRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// Unreadable record: treat as absent and drop it so it cannot
		// wedge the client forever.
		log.Printf("Dropping unreadable block record for %s: %v", ip, err)
		r.UnblockIP(ctx, ip)
		return false
	}

	if record.IsTemporary && r.now().UnixMilli() > record.ExpiresAt {
		r.UnblockIP(ctx, ip)
		return false
	}
	return true
}

// UnblockIP removes the record and reports whether one existed.
func (r *BlockRegistry) UnblockIP(ctx context.Context, ip string) bool {
	_, found, err := r.store.HGet(ctx, keyBlockedIPs, ip)
	if err != nil {
		log.Printf("Unblock lookup failed for %s: %v", ip, err)
		return false
	}
	if !found {
		return false
	}
	if err := r.store.HDel(ctx, keyBlockedIPs, ip); err != nil {
		log.Printf("Failed to unblock IP %s: %v", ip, err)
		return false
	}
	log.Printf("Unblocked IP %s", ip)
	return true
}

// GetBlockedIPs lists the active block records. Expired temporary
// blocks encountered during the scan are removed and excluded.
func (r *BlockRegistry) GetBlockedIPs(ctx context.Context) []BlockRecord {
	entries, err := r.store.HGetAll(ctx, keyBlockedIPs)
	if err != nil {
		log.Printf("Failed to list blocked IPs: %v", err)
		return []BlockRecord{}
	}

	nowMs := r.now().UnixMilli()
	records := make([]BlockRecord, 0, len(entries))
	for ip, raw := range entries {
		var record BlockRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		if record.IsTemporary && nowMs > record.ExpiresAt {
			r.store.HDel(ctx, keyBlockedIPs, ip)
			continue
		}
		records = append(records, record)
	}
	return records
}

// GetSuspiciousActivity lists the clients with active escalation
// counters together with their last recorded attempt.
func (r *BlockRegistry) GetSuspiciousActivity(ctx context.Context) []SuspiciousAttempt {
	keys, err := r.store.Keys(ctx, keySuspiciousAttempts+"*")
	if err != nil {
		log.Printf("Failed to scan suspicious attempts: %v", err)
		return []SuspiciousAttempt{}
	}

	attempts := make([]SuspiciousAttempt, 0, len(keys))
	for _, key := range keys {
		ip := strings.TrimPrefix(key, keySuspiciousAttempts)

		raw, found, err := r.store.GetValue(ctx, key)
		if err != nil || !found {
			continue
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}

		entry := SuspiciousAttempt{IP: ip, Attempts: count}
		if meta, err := r.store.HGetAll(ctx, keySuspiciousMeta+ip); err == nil {
			if ts, err := strconv.ParseInt(meta["last_attempt"], 10, 64); err == nil {
				entry.LastAttempt = ts
			}
			entry.Description = meta["description"]
		}
		attempts = append(attempts, entry)
	}
	return attempts
}

// GetStats aggregates block and suspicion counts for the admin surface.
func (r *BlockRegistry) GetStats(ctx context.Context) BlockStats {
	stats := BlockStats{}
	for _, record := range r.GetBlockedIPs(ctx) {
		stats.TotalBlocked++
		if record.IsTemporary {
			stats.TemporaryBlocks++
		} else {
			stats.PermanentBlocks++
		}
	}

	keys, err := r.store.Keys(ctx, keySuspiciousAttempts+"*")
	if err != nil {
		return stats
	}
	stats.SuspiciousIPs = len(keys)
	return stats
}

// ImportMaliciousIPList bulk-creates permanent blocks in one pipelined
// write and returns how many records were imported.
func (r *BlockRegistry) ImportMaliciousIPList(ctx context.Context, ips []string, reason string) int {
	if len(ips) == 0 {
		return 0
	}

	nowMs := r.now().UnixMilli()
	fields := make(map[string]string, len(ips))
	for _, ip := range ips {
		record := BlockRecord{
			IP:        ip,
			Reason:    reason,
			BlockedAt: nowMs,
		}
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		fields[ip] = string(data)
	}

	if err := r.store.HSetBatch(ctx, keyBlockedIPs, fields); err != nil {
		log.Printf("Failed to import malicious IP list: %v", err)
		return 0
	}
	log.Printf("Imported %d malicious IPs: %s", len(fields), reason)
	return len(fields)
}

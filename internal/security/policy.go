package security

import "strings"

// RateLimitPolicy is a per-endpoint quota consulted by the HTTP
// rate-limiting middleware.
type RateLimitPolicy struct {
	WindowMs    int64 `json:"window_ms"`
	MaxRequests int   `json:"max_requests"`
}

// PolicyTable maps endpoint prefixes to quotas. It holds no state; the
// actual counters live in the request tracker.
type PolicyTable struct {
	policies map[string]RateLimitPolicy
	fallback RateLimitPolicy
}

func NewPolicyTable() *PolicyTable {
	return &PolicyTable{
		policies: map[string]RateLimitPolicy{
			"/api/auth/login":    {WindowMs: 60000, MaxRequests: 10},
			"/api/auth/register": {WindowMs: 60000, MaxRequests: 5},
			"/api/jobs":          {WindowMs: 60000, MaxRequests: 100},
			"/api/applications":  {WindowMs: 60000, MaxRequests: 50},
			"/api/bookmarks":     {WindowMs: 60000, MaxRequests: 50},
			"/graphql":           {WindowMs: 60000, MaxRequests: 200},
		},
		fallback: RateLimitPolicy{WindowMs: 60000, MaxRequests: 100},
	}
}

// Lookup resolves the policy for a request path using the longest
// matching prefix, falling back to the default quota.
func (t *PolicyTable) Lookup(path string) RateLimitPolicy {
	best := ""
	for prefix := range t.policies {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return t.fallback
	}
	return t.policies[best]
}

// SetPolicy installs or replaces a quota at runtime.
func (t *PolicyTable) SetPolicy(prefix string, policy RateLimitPolicy) {
	t.policies[prefix] = policy
}

// AdjustForLoad scales a quota with server load: above 80% load the
// limit shrinks by 30%, below 30% it grows by 20%, otherwise it is
// returned unchanged.
func AdjustForLoad(policy RateLimitPolicy, serverLoadPercent float64) RateLimitPolicy {
	switch {
	case serverLoadPercent > 80:
		policy.MaxRequests = int(float64(policy.MaxRequests) * 0.7)
	case serverLoadPercent < 30:
		policy.MaxRequests = int(float64(policy.MaxRequests) * 1.2)
	}
	if policy.MaxRequests < 1 {
		policy.MaxRequests = 1
	}
	return policy
}

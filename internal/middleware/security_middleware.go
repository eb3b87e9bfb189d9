package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/amitdubeyup/jobpay-backend/internal/security"

	"github.com/gin-gonic/gin"
)

// clientIP normalizes the caller's address so the same client always
// maps to the same tracking key.
func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	switch ip {
	case "::1":
		return "127.0.0.1"
	default:
		if strings.HasPrefix(ip, "::ffff:") {
			return ip[7:]
		}
	}

	return ip
}

// IPBlockMiddleware rejects requests from blocked clients before any
// other work happens. A store outage means nobody is treated as
// blocked.
func IPBlockMiddleware(registry *security.BlockRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)
		c.Set("client_ip", ip)

		if registry.IsBlocked(c.Request.Context(), ip) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestTrackingMiddleware counts the request against the client's
// minute/hour quotas and answers 429 (or 503 for DDoS-level bursts)
// with advisory headers when a quota is exceeded. The advertised limit
// comes from the per-endpoint policy table.
func RequestTrackingMiddleware(tracker *security.RequestTracker, ledger *security.SuspiciousLedger, policies *security.PolicyTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.GetString("client_ip")
		if ip == "" {
			ip = clientIP(c)
		}
		ctx := c.Request.Context()

		result := tracker.TrackRequest(ctx, ip)

		if result.DDoS {
			ledger.TrackSuspiciousActivity(ctx, ip, fmt.Sprintf("DDoS-level burst: %d requests in one minute", result.RequestCount))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			c.Abort()
			return
		}

		policy := policies.Lookup(c.Request.URL.Path)
		status := tracker.ShouldRateLimit(ctx, ip)
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", policy.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", status.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", status.ResetTimeMs/1000))

		if result.Blocked {
			c.Header("Retry-After", fmt.Sprintf("%d", (status.ResetTimeMs-time.Now().UnixMilli())/1000+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Rate limit exceeded",
				"remaining": 0,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Patterns that have no business appearing in query parameters of this
// API. Matches feed the suspicious-activity ledger.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(union\s+select|insert\s+into|drop\s+table|delete\s+from)`),
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)(javascript|vbscript):`),
	regexp.MustCompile(`\.\./\.\./`),
}

// SanitizationMiddleware scans the query string and path for injection
// patterns, records an incident and rejects the request.
func SanitizationMiddleware(ledger *security.SuspiciousLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Request.URL.RawQuery + " " + c.Request.URL.Path
		for _, pattern := range suspiciousPatterns {
			if pattern.MatchString(target) {
				ip := c.GetString("client_ip")
				if ip == "" {
					ip = clientIP(c)
				}
				ledger.TrackSuspiciousActivity(c.Request.Context(), ip, fmt.Sprintf("Injection pattern in request: %s %s", c.Request.Method, c.Request.URL.Path))
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// MetricsMiddleware records timing and outcome after the handler runs.
func MetricsMiddleware(metrics *security.MetricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		metrics.RecordMetric(c.Request.Context(), endpoint, c.Request.Method, time.Since(start).Milliseconds(), c.Writer.Status())
	}
}

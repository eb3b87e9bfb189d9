package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amitdubeyup/jobpay-backend/internal/security"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

// SecurityHandler exposes the admin surface of the security subsystem.
// Read aggregations are cached briefly in-process; only the derived
// responses are cached, never the underlying records, which stay in
// Redis.
type SecurityHandler struct {
	registry *security.BlockRegistry
	ledger   *security.SuspiciousLedger
	metrics  *security.MetricsRecorder
	feed     *AlertFeedHandler
	cache    *gocache.Cache
}

func NewSecurityHandler(registry *security.BlockRegistry, ledger *security.SuspiciousLedger, metrics *security.MetricsRecorder, feed *AlertFeedHandler) *SecurityHandler {
	return &SecurityHandler{
		registry: registry,
		ledger:   ledger,
		metrics:  metrics,
		feed:     feed,
		cache:    gocache.New(30*time.Second, time.Minute),
	}
}

// GetBlockedIPs lists active blocks
// @Summary List blocked IPs
// @Tags security
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/security/blocked [get]
func (h *SecurityHandler) GetBlockedIPs(c *gin.Context) {
	records := h.registry.GetBlockedIPs(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"blocked_ips": records, "count": len(records)})
}

// GetSuspiciousActivity lists clients with active escalation counters.
func (h *SecurityHandler) GetSuspiciousActivity(c *gin.Context) {
	attempts := h.registry.GetSuspiciousActivity(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"suspicious": attempts, "count": len(attempts)})
}

// GetSuspiciousRecord returns the accumulated reason history for one
// client.
func (h *SecurityHandler) GetSuspiciousRecord(c *gin.Context) {
	record := h.ledger.GetSuspiciousRecord(c.Request.Context(), c.Param("ip"))
	if record == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No suspicious record"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetStats returns block/suspicion aggregates.
func (h *SecurityHandler) GetStats(c *gin.Context) {
	if cached, found := h.cache.Get("security:stats"); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	stats := h.registry.GetStats(c.Request.Context())
	h.cache.Set("security:stats", stats, gocache.DefaultExpiration)
	c.JSON(http.StatusOK, stats)
}

// GetSystemMetrics returns the 5-minute performance summary.
func (h *SecurityHandler) GetSystemMetrics(c *gin.Context) {
	if cached, found := h.cache.Get("security:system_metrics"); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	metrics := h.metrics.GetSystemMetrics(c.Request.Context())
	h.cache.Set("security:system_metrics", metrics, gocache.DefaultExpiration)
	c.JSON(http.StatusOK, metrics)
}

// GetEndpointStats returns 24h per-endpoint aggregates.
func (h *SecurityHandler) GetEndpointStats(c *gin.Context) {
	stats := h.metrics.GetEndpointStats(c.Request.Context(), c.Query("endpoint"))
	c.JSON(http.StatusOK, gin.H{"endpoints": stats})
}

// GetPerformanceAlerts returns recent slow-request alerts.
func (h *SecurityHandler) GetPerformanceAlerts(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	alerts := h.metrics.GetPerformanceAlerts(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// BlockIP blocks a client
// @Summary Block an IP
// @Tags security
// @Accept json
// @Produce json
// @Param request body BlockRequest true "Block data"
// @Security BearerAuth
// @Success 200 {object} SuccessResponse
// @Router /api/admin/security/block [post]
func (h *SecurityHandler) BlockIP(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	h.registry.BlockIP(c.Request.Context(), req.IP, req.Reason, duration)

	if h.feed != nil {
		h.feed.PublishBlockEvent(security.BlockRecord{
			IP:          req.IP,
			Reason:      req.Reason,
			BlockedAt:   time.Now().UnixMilli(),
			IsTemporary: req.DurationMinutes > 0,
		})
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "IP blocked"})
}

// UnblockIP removes a block.
func (h *SecurityHandler) UnblockIP(c *gin.Context) {
	if h.registry.UnblockIP(c.Request.Context(), c.Param("ip")) {
		c.JSON(http.StatusOK, SuccessResponse{Message: "IP unblocked"})
		return
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "IP was not blocked"})
}

// ImportMaliciousIPs bulk-imports a permanent blocklist.
func (h *SecurityHandler) ImportMaliciousIPs(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IPs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	imported := h.registry.ImportMaliciousIPList(c.Request.Context(), req.IPs, req.Reason)
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Import complete",
		Data:    map[string]interface{}{"imported": imported},
	})
}

type BlockRequest struct {
	IP              string `json:"ip" binding:"required"`
	Reason          string `json:"reason" binding:"required"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ImportRequest struct {
	IPs    []string `json:"ips" binding:"required"`
	Reason string   `json:"reason" binding:"required"`
}

package security

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/amitdubeyup/jobpay-backend/configs"

	"github.com/google/uuid"
)

const (
	metricTTL     = 24 * time.Hour
	metricsWindow = 5 * time.Minute
	maxAlerts     = 100
)

// PerformanceMetric is one recorded request outcome. Metrics are
// append-only: each lives under its own key with a 24h TTL and is
// reachable through a timestamp-scored index.
type PerformanceMetric struct {
	Endpoint       string `json:"endpoint"`
	Method         string `json:"method"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Timestamp      int64  `json:"timestamp"`
	StatusCode     int    `json:"status_code"`
	MemoryBytes    uint64 `json:"memory_bytes"`
}

// PerformanceAlert is emitted when a request exceeds the slow-request
// thresholds.
type PerformanceAlert struct {
	Level          string `json:"level"`
	Endpoint       string `json:"endpoint"`
	Method         string `json:"method"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	StatusCode     int    `json:"status_code"`
	Timestamp      int64  `json:"timestamp"`
}

// SystemMetrics summarizes the last five minutes of traffic.
type SystemMetrics struct {
	TotalRequests int     `json:"total_requests"`
	AverageMs     float64 `json:"average_ms"`
	P95Ms         int64   `json:"p95_ms"`
	P99Ms         int64   `json:"p99_ms"`
	SuccessCount  int     `json:"success_count"`
	ErrorCount    int     `json:"error_count"`
}

// EndpointStat is a per-(method, endpoint) aggregate over 24 hours.
type EndpointStat struct {
	Endpoint      string  `json:"endpoint"`
	Method        string  `json:"method"`
	AvgResponseMs float64 `json:"avg_response_ms"`
	RequestCount  int     `json:"request_count"`
	ErrorRate     float64 `json:"error_rate"`
}

// AlertSink receives alerts as they fire, for real-time fan-out. May
// be nil.
type AlertSink interface {
	PublishAlert(alert PerformanceAlert)
}

// MetricsRecorder persists request timings and aggregates them over
// rolling 5-minute and 24-hour horizons.
type MetricsRecorder struct {
	store Store
	cfg   configs.SecurityConfig
	sink  AlertSink
	now   func() time.Time
}

func NewMetricsRecorder(store Store, cfg configs.SecurityConfig, sink AlertSink) *MetricsRecorder {
	return &MetricsRecorder{
		store: store,
		cfg:   cfg,
		sink:  sink,
		now:   time.Now,
	}
}

// RecordMetric stores one metric, indexes it by timestamp, trims index
// entries older than 24 hours and fires slow-request alerts. The index
// trim is explicit: the payload keys expire on their own, but stale
// index entries would otherwise pile up and dereference to nothing.
func (m *MetricsRecorder) RecordMetric(ctx context.Context, endpoint, method string, responseTimeMs int64, statusCode int) {
	nowMs := m.now().UnixMilli()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metric := PerformanceMetric{
		Endpoint:       endpoint,
		Method:         method,
		ResponseTimeMs: responseTimeMs,
		Timestamp:      nowMs,
		StatusCode:     statusCode,
		MemoryBytes:    memStats.HeapAlloc,
	}

	data, err := json.Marshal(metric)
	if err != nil {
		log.Printf("Failed to marshal metric for %s %s: %v", method, endpoint, err)
		return
	}

	key := fmt.Sprintf("%s%d:%s", keyMetricPrefix, nowMs, uuid.NewString()[:8])
	if err := m.store.SetValue(ctx, key, string(data), metricTTL); err != nil {
		log.Printf("Failed to record metric for %s %s: %v", method, endpoint, err)
		return
	}
	m.store.ZAdd(ctx, keyMetricIndex, float64(nowMs), key)
	m.store.ZRemRangeByScore(ctx, keyMetricIndex, "0", strconv.FormatInt(nowMs-metricTTL.Milliseconds(), 10))

	m.checkThresholds(ctx, metric)
	m.updateHourlyStats(ctx, nowMs, statusCode)
}

func (m *MetricsRecorder) checkThresholds(ctx context.Context, metric PerformanceMetric) {
	var level string
	switch {
	case metric.ResponseTimeMs > int64(m.cfg.VerySlowRequestMs):
		level = "error"
		log.Printf("ERROR: very slow request %s %s took %dms", metric.Method, metric.Endpoint, metric.ResponseTimeMs)
	case metric.ResponseTimeMs > int64(m.cfg.SlowRequestMs):
		level = "warning"
		log.Printf("WARNING: slow request %s %s took %dms", metric.Method, metric.Endpoint, metric.ResponseTimeMs)
	default:
		return
	}

	alert := PerformanceAlert{
		Level:          level,
		Endpoint:       metric.Endpoint,
		Method:         metric.Method,
		ResponseTimeMs: metric.ResponseTimeMs,
		StatusCode:     metric.StatusCode,
		Timestamp:      metric.Timestamp,
	}

	if data, err := json.Marshal(alert); err == nil {
		m.store.LPush(ctx, keyAlertList, string(data))
		m.store.LTrim(ctx, keyAlertList, 0, maxAlerts-1)
	}
	if m.sink != nil {
		m.sink.PublishAlert(alert)
	}
}

func (m *MetricsRecorder) updateHourlyStats(ctx context.Context, nowMs int64, statusCode int) {
	statsKey := keyHourlyStats + strconv.FormatInt(nowMs/3600000, 10)
	m.store.HIncrBy(ctx, statsKey, "total", 1)
	if statusCode >= 400 {
		m.store.HIncrBy(ctx, statsKey, "failed", 1)
	} else {
		m.store.HIncrBy(ctx, statsKey, "success", 1)
	}
	m.store.Expire(ctx, statsKey, time.Hour)
}

// GetSystemMetrics aggregates the last five minutes. The scan is O(n)
// over the window, which stays bounded by the recording rate and TTL.
func (m *MetricsRecorder) GetSystemMetrics(ctx context.Context) SystemMetrics {
	metrics := m.loadWindow(ctx, metricsWindow)
	if len(metrics) == 0 {
		return SystemMetrics{}
	}

	times := make([]int64, 0, len(metrics))
	var sum int64
	result := SystemMetrics{TotalRequests: len(metrics)}
	for _, metric := range metrics {
		times = append(times, metric.ResponseTimeMs)
		sum += metric.ResponseTimeMs
		if metric.StatusCode >= 400 {
			result.ErrorCount++
		} else {
			result.SuccessCount++
		}
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	result.AverageMs = float64(sum) / float64(len(times))
	result.P95Ms = times[percentileIndex(len(times), 0.95)]
	result.P99Ms = times[percentileIndex(len(times), 0.99)]
	return result
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// GetEndpointStats groups the last 24 hours by (method, endpoint). An
// empty endpoint returns every group.
func (m *MetricsRecorder) GetEndpointStats(ctx context.Context, endpoint string) []EndpointStat {
	metrics := m.loadWindow(ctx, metricTTL)

	type groupKey struct {
		method   string
		endpoint string
	}
	type bucket struct {
		total  int64
		count  int
		errors int
	}
	buckets := make(map[groupKey]*bucket)
	for _, metric := range metrics {
		if endpoint != "" && metric.Endpoint != endpoint {
			continue
		}
		key := groupKey{method: metric.Method, endpoint: metric.Endpoint}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total += metric.ResponseTimeMs
		b.count++
		if metric.StatusCode >= 400 {
			b.errors++
		}
	}

	stats := make([]EndpointStat, 0, len(buckets))
	for key, b := range buckets {
		stats = append(stats, EndpointStat{
			Endpoint:      key.endpoint,
			Method:        key.method,
			AvgResponseMs: float64(b.total) / float64(b.count),
			RequestCount:  b.count,
			ErrorRate:     float64(b.errors) / float64(b.count),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].RequestCount > stats[j].RequestCount })
	return stats
}

// GetPerformanceAlerts returns the most recent alerts, newest first.
func (m *MetricsRecorder) GetPerformanceAlerts(ctx context.Context, limit int64) []PerformanceAlert {
	if limit <= 0 || limit > maxAlerts {
		limit = maxAlerts
	}
	entries, err := m.store.LRange(ctx, keyAlertList, 0, limit-1)
	if err != nil {
		log.Printf("Failed to read performance alerts: %v", err)
		return []PerformanceAlert{}
	}

	alerts := make([]PerformanceAlert, 0, len(entries))
	for _, raw := range entries {
		var alert PerformanceAlert
		if err := json.Unmarshal([]byte(raw), &alert); err != nil {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

func (m *MetricsRecorder) loadWindow(ctx context.Context, window time.Duration) []PerformanceMetric {
	nowMs := m.now().UnixMilli()
	cutoff := strconv.FormatInt(nowMs-window.Milliseconds(), 10)

	keys, err := m.store.ZRangeByScore(ctx, keyMetricIndex, cutoff, "+inf")
	if err != nil {
		log.Printf("Failed to scan metrics index: %v", err)
		return nil
	}
	if len(keys) == 0 {
		return nil
	}

	values, err := m.store.MGet(ctx, keys...)
	if err != nil {
		log.Printf("Failed to load metrics payloads: %v", err)
		return nil
	}

	metrics := make([]PerformanceMetric, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Index entry outlived its payload; the next trim drops it.
			continue
		}
		var metric PerformanceMetric
		if err := json.Unmarshal([]byte(raw), &metric); err != nil {
			continue
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

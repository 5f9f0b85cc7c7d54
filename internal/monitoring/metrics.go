package monitoring

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "karten_melder"

// Metrics holds application metrics. Counters are mirrored into a private
// Prometheus registry and kept as plain numbers for the health summary.
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	ReportsCreated      int64
	FeedbackCreated     int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	RateLimitBlocks         int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	RateLimitEndpointBlocks map[string]int64
	RateLimitMutex          sync.RWMutex

	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	reportsTotal    prometheus.Counter
	feedbackTotal   prometheus.Counter
	rateLimitBlocks *prometheus.CounterVec
	rankingCache    *prometheus.CounterVec
	retentionPurged *prometheus.CounterVec
}

// NewMetrics creates a metrics instance with its own Prometheus registry
func NewMetrics() *Metrics {
	m := &Metrics{
		StartTime:               time.Now(),
		ResponseTimes:           make([]time.Duration, 0, 1000),
		RequestCountByStatus:    make(map[int]int64),
		RateLimitEndpointBlocks: make(map[string]int64),
		registry:                prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Reports stored through the public form or the admin console.",
		}),
		feedbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_created_total",
			Help:      "Feedback entries accepted.",
		}),
		rateLimitBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by the rate limiter, by limit name.",
		}, []string{"limit"}),
		rankingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_cache_total",
			Help:      "Ranking cache lookups by result.",
		}, []string{"result"}),
		retentionPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_purged_total",
			Help:      "Records removed by the retention cleanup, by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.reportsTotal,
		m.feedbackTotal,
		m.rateLimitBlocks,
		m.rankingCache,
		m.retentionPurged,
	)

	return m
}

// Registry exposes the private Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments ranking cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
	m.rankingCache.WithLabelValues("hit").Inc()
}

// IncrementCacheMiss increments ranking cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
	m.rankingCache.WithLabelValues("miss").Inc()
}

// IncrementReportsCreated counts a stored report
func (m *Metrics) IncrementReportsCreated() {
	atomic.AddInt64(&m.ReportsCreated, 1)
	m.reportsTotal.Inc()
}

// IncrementFeedbackCreated counts an accepted feedback entry
func (m *Metrics) IncrementFeedbackCreated() {
	atomic.AddInt64(&m.FeedbackCreated, 1)
	m.feedbackTotal.Inc()
}

// RecordRetentionPurge counts records removed by the retention cleanup
func (m *Metrics) RecordRetentionPurge(reports, feedback int64) {
	m.retentionPurged.WithLabelValues("report").Add(float64(reports))
	m.retentionPurged.WithLabelValues("feedback").Add(float64(feedback))
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	m.RecordResponseTime(duration)
	m.RecordRequestByStatus(status)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	newAverage := (current + duration.Nanoseconds()) / 2
	atomic.StoreInt64(&m.AverageResponseTime, newAverage)

	// keep the last 1000 samples
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}

	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64)
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	avgResponseTime := atomic.LoadInt64(&m.AverageResponseTime)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	totalCacheRequests := cacheHits + cacheMisses
	if totalCacheRequests > 0 {
		cacheHitRate = float64(cacheHits) / float64(totalCacheRequests) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
		"total_requests":           requests,
		"error_count":              errors,
		"error_rate_percent":       errorRate,
		"cache_hits":               cacheHits,
		"cache_misses":             cacheMisses,
		"cache_hit_rate_percent":   cacheHitRate,
		"reports_created":          atomic.LoadInt64(&m.ReportsCreated),
		"feedback_created":         atomic.LoadInt64(&m.FeedbackCreated),
		"avg_response_time_ms":     float64(avgResponseTime) / 1000000,
		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1000000,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1000000,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1000000,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"rate_limit":               m.GetRateLimitStats(),
		"start_time":               m.StartTime.Format(time.RFC3339),
	}
}

// IncrementRateLimitBlock counts a request rejected by the named limit
func (m *Metrics) IncrementRateLimitBlock(limit string) {
	atomic.AddInt64(&m.RateLimitBlocks, 1)
	m.rateLimitBlocks.WithLabelValues(limit).Inc()

	m.RateLimitMutex.Lock()
	defer m.RateLimitMutex.Unlock()
	m.RateLimitEndpointBlocks[limit]++
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.RateLimitMutex.RLock()
	endpointBlocksCopy := make(map[string]int64, len(m.RateLimitEndpointBlocks))
	for k, v := range m.RateLimitEndpointBlocks {
		endpointBlocksCopy[k] = v
	}
	m.RateLimitMutex.RUnlock()

	return map[string]interface{}{
		"blocks":          atomic.LoadInt64(&m.RateLimitBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocksCopy,
	}
}

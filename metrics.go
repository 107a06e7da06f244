package taskdesk

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a client counter.
type MetricID uint16

const (
	// MetricRequest counts logical requests passed to Do.
	MetricRequest MetricID = iota
	// MetricRequestFailure counts transport failures (no response).
	MetricRequestFailure
	// MetricHTTPError counts non-2xx responses other than 401.
	MetricHTTPError
	// MetricUnauthorized counts 401 responses seen on any attempt.
	MetricUnauthorized
	// MetricReplay counts requests replayed after a refresh.
	MetricReplay
	// MetricRetryExhausted counts second 401s on an already-replayed request.
	MetricRetryExhausted
	// MetricRefreshStarted counts refresh exchanges started.
	MetricRefreshStarted
	// MetricRefreshSuccess counts refresh exchanges that produced a token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh exchanges that failed.
	MetricRefreshFailure
	// MetricRefreshWaitTimeout counts requests that stopped waiting on a refresh.
	MetricRefreshWaitTimeout
	// MetricEarlyRefresh counts refreshes triggered by an expiring token.
	MetricEarlyRefresh
	// MetricSessionStarted counts successful OTP verifications and restores.
	MetricSessionStarted
	// MetricSessionEnded counts forced session endings.
	MetricSessionEnded
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricForbiddenLocal counts operations refused by the role guard.
	MetricForbiddenLocal
	// MetricRefreshLatency is the refresh exchange latency histogram.
	MetricRefreshLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRequest:            "request",
	MetricRequestFailure:     "request_failure",
	MetricHTTPError:          "http_error",
	MetricUnauthorized:       "unauthorized",
	MetricReplay:             "replay",
	MetricRetryExhausted:     "retry_exhausted",
	MetricRefreshStarted:     "refresh_started",
	MetricRefreshSuccess:     "refresh_success",
	MetricRefreshFailure:     "refresh_failure",
	MetricRefreshWaitTimeout: "refresh_wait_timeout",
	MetricEarlyRefresh:       "early_refresh",
	MetricSessionStarted:     "session_started",
	MetricSessionEnded:       "session_ended",
	MetricLogout:             "logout",
	MetricForbiddenLocal:     "forbidden_local",
	MetricRefreshLatency:     "refresh_latency",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free client counters. A nil or disabled Metrics ignores
// every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the refresh latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricRefreshLatency has
// a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRefreshLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRefreshLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}

	return s
}

// Refresh exchanges are network round trips, so the buckets start at 10ms.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}

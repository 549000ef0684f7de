package goBankID

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricBeginSuccess counts orders started at the provider.
	MetricBeginSuccess MetricID = iota
	// MetricBeginFailure is an exported constant or variable used by the authentication engine.
	MetricBeginFailure
	// MetricBeginRateLimited is an exported constant or variable used by the authentication engine.
	MetricBeginRateLimited
	// MetricCollect counts provider polls.
	MetricCollect
	// MetricCollectProviderError counts polls where the provider could not be reached.
	MetricCollectProviderError
	// MetricOrderComplete is an exported constant or variable used by the authentication engine.
	MetricOrderComplete
	// MetricOrderCompleteNoUser is an exported constant or variable used by the authentication engine.
	MetricOrderCompleteNoUser
	// MetricOrderFailed is an exported constant or variable used by the authentication engine.
	MetricOrderFailed
	// MetricOrderStartFailed counts failed orders whose hint was startFailed.
	MetricOrderStartFailed
	// MetricOrderExpired is an exported constant or variable used by the authentication engine.
	MetricOrderExpired
	// MetricOrderSuperseded is an exported constant or variable used by the authentication engine.
	MetricOrderSuperseded
	// MetricSessionCreated is an exported constant or variable used by the authentication engine.
	MetricSessionCreated
	// MetricSessionCreationFailed is an exported constant or variable used by the authentication engine.
	MetricSessionCreationFailed
	// MetricLogout is an exported constant or variable used by the authentication engine.
	MetricLogout
	// MetricIdentityBound is an exported constant or variable used by the authentication engine.
	MetricIdentityBound
	// MetricCollectLatency is the only histogram: provider collect round trips.
	MetricCollectLatency
	metricIDCount
)

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

// Metrics holds lock-free engine counters. A disabled Metrics ignores every
// update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
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

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricCollectLatency has
// a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricCollectLatency {
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

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
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
		if id == MetricCollectLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCollectLatency].buckets[i])
		}
		s.Histograms[MetricCollectLatency] = buckets
	}

	return s
}

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

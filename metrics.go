package grantcore

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by grantcore APIs.
type MetricID uint16

const (
	// MetricSessionIssued is an exported constant or variable used by the grant engine.
	MetricSessionIssued MetricID = iota
	// MetricSessionValidateSuccess is an exported constant or variable used by the grant engine.
	MetricSessionValidateSuccess
	// MetricSessionValidateFailure is an exported constant or variable used by the grant engine.
	MetricSessionValidateFailure
	// MetricSessionRevoked is an exported constant or variable used by the grant engine.
	MetricSessionRevoked
	// MetricSessionRevokedAll is an exported constant or variable used by the grant engine.
	MetricSessionRevokedAll
	// MetricRotateSuccess is an exported constant or variable used by the grant engine.
	MetricRotateSuccess
	// MetricRotateFailure is an exported constant or variable used by the grant engine.
	MetricRotateFailure
	// MetricOfferCreated is an exported constant or variable used by the grant engine.
	MetricOfferCreated
	// MetricOfferAccepted is an exported constant or variable used by the grant engine.
	MetricOfferAccepted
	// MetricOfferDenied is an exported constant or variable used by the grant engine.
	MetricOfferDenied
	// MetricOfferExpired is an exported constant or variable used by the grant engine.
	MetricOfferExpired
	// MetricAllocationFailed is an exported constant or variable used by the grant engine.
	MetricAllocationFailed
	// MetricClaimConflict counts claims lost to another caller.
	MetricClaimConflict
	// MetricStoreUnavailable is an exported constant or variable used by the grant engine.
	MetricStoreUnavailable
	// MetricValidateLatency is an exported constant or variable used by the grant engine.
	MetricValidateLatency
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

// Metrics defines a public type used by grantcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by grantcore APIs.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled describes the latencyenabled operation and its observable behavior.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

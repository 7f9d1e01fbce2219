package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram slot.
type MetricID uint16

const (
	MetricSessionIssued MetricID = iota
	MetricSessionVerified
	MetricSessionRenewed
	MetricSessionInvalid
	MetricBindIssued
	MetricBindVerified
	MetricMailCodeIssued
	MetricIssueCollision
	MetricIssueExhausted
	MetricVerifySuccess
	MetricVerifyFailure
	MetricVerifyHashMismatch
	MetricVerifyExpired
	MetricBindingBind
	MetricBindingLogin
	MetricBindingSelect
	MetricBindingFailed
	MetricLoginSuccess
	MetricLoginFailure
	MetricAccountCreated
	MetricPlayerBound
	MetricRateLimited
	MetricVerifyLatency
	metricIDCount
)

// Count is the number of metric slots.
const Count = int(metricIDCount)

const (
	// HistBucketCount is the number of latency buckets.
	HistBucketCount = 8
	cacheLineSize   = 64
)

// BucketBounds are the inclusive upper bounds of the first seven buckets; the
// last bucket is unbounded.
var BucketBounds = [HistBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type histogram struct {
	buckets [HistBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds the counters. The zero value and nil are disabled.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]histogram
}

// Snapshot is a copy of every counter and the enabled histograms.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only MetricVerifyLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, HistBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d <= bound {
			return i
		}
	}
	return HistBucketCount - 1
}

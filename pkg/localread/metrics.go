package localread

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// rejectReason indexes the fixed set of rejection counters spec §4.6
// fixes: store_id_mismatch, peer_id_mismatch, term_mismatch,
// lease_expire, no_region, no_lease, epoch, appiled_term, channel_full.
type rejectReason int

const (
	rejectStoreIDMismatch rejectReason = iota
	rejectPeerIDMismatch
	rejectTermMismatch
	rejectLeaseExpire
	rejectNoRegion
	rejectNoLease
	rejectEpoch
	rejectAppliedTerm
	rejectChannelFull
	numRejectReasons
)

// label preserves the exact original label spelling, including the
// "appiled_term" typo the original metric carries.
func (r rejectReason) label() string {
	switch r {
	case rejectStoreIDMismatch:
		return "store_id_mismatch"
	case rejectPeerIDMismatch:
		return "peer_id_mismatch"
	case rejectTermMismatch:
		return "term_mismatch"
	case rejectLeaseExpire:
		return "lease_expire"
	case rejectNoRegion:
		return "no_region"
	case rejectNoLease:
		return "no_lease"
	case rejectEpoch:
		return "epoch"
	case rejectAppliedTerm:
		return "appiled_term"
	case rejectChannelFull:
		return "channel_full"
	default:
		return "unknown"
	}
}

var (
	rejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvnode_local_read_reject_total",
			Help: "Total local reads rejected, by reason.",
		},
		[]string{"reason"},
	)
	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvnode_local_read_batch_size",
			Help:    "Number of tasks in a single local-reader batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	batchWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvnode_local_read_batch_wait_seconds",
			Help:    "Time from the first message's send_time to the end of its batch.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(rejectTotal, batchSize, batchWaitSeconds)
}

// localMetrics accumulates per-batch counters that are flushed into the
// process's global Prometheus counters every MetricsFlushInterval,
// mirroring the original's LocalHistogram buffering: the reader
// goroutine increments the local counters and the metrics-flush
// goroutine drains them, both under mu, and flush adds them into the
// global vec under one label per nonzero reason.
type localMetrics struct {
	mu      sync.Mutex
	rejects [numRejectReasons]int64
}

func newLocalMetrics() *localMetrics {
	return &localMetrics{}
}

func (m *localMetrics) inc(reason rejectReason) {
	m.mu.Lock()
	m.rejects[reason]++
	m.mu.Unlock()
}

// snapshot returns the counters accumulated so far, for tests.
func (m *localMetrics) snapshot() [numRejectReasons]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejects
}

// flush adds every nonzero local counter into the global vec and
// resets it to zero.
func (m *localMetrics) flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for r := rejectReason(0); r < numRejectReasons; r++ {
		if m.rejects[r] == 0 {
			continue
		}
		rejectTotal.WithLabelValues(r.label()).Add(float64(m.rejects[r]))
		m.rejects[r] = 0
	}
}

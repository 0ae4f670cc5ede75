package authd

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricAuthcodeIssued counts successfully stored authcodes.
	MetricAuthcodeIssued MetricID = iota
	// MetricAuthcodeRateLimited counts adds refused by the bucket cap.
	MetricAuthcodeRateLimited
	// MetricAuthcodeConsumed counts successful single-use pops.
	MetricAuthcodeConsumed
	// MetricAuthcodeRejected counts absent or expired authcode checks.
	MetricAuthcodeRejected
	// MetricPairCreated counts minted token pairs, login and rotation alike.
	MetricPairCreated
	// MetricAccessAccepted counts access-token checks that verified.
	MetricAccessAccepted
	// MetricAccessRejected counts access-token checks that failed.
	MetricAccessRejected
	// MetricPermissionDenied counts role-gate refusals.
	MetricPermissionDenied
	// MetricPairRefreshed counts completed rotations.
	MetricPairRefreshed
	// MetricPairRejected counts pair-consistency failures.
	MetricPairRejected
	// MetricPairDeleted counts logout deletions.
	MetricPairDeleted
	// MetricStoreFailure counts backing-store communication failures.
	MetricStoreFailure

	metricCount
)

var metricNames = [metricCount]string{
	MetricAuthcodeIssued:      "authcode_issued",
	MetricAuthcodeRateLimited: "authcode_rate_limited",
	MetricAuthcodeConsumed:    "authcode_consumed",
	MetricAuthcodeRejected:    "authcode_rejected",
	MetricPairCreated:         "pair_created",
	MetricAccessAccepted:      "access_accepted",
	MetricAccessRejected:      "access_rejected",
	MetricPermissionDenied:    "permission_denied",
	MetricPairRefreshed:       "pair_refreshed",
	MetricPairRejected:        "pair_rejected",
	MetricPairDeleted:         "pair_deleted",
	MetricStoreFailure:        "store_failure",
}

func (id MetricID) String() string {
	if id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics is a fixed set of lock-free counters. All methods are safe
// for concurrent use.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of every counter.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}

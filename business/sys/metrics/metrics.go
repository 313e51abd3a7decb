// Package metrics provides the Prometheus collectors for the node.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "powchain"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "web",
		Name:      "requests_total",
		Help:      "Count of handled HTTP requests.",
	}, []string{"method", "route", "status"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "web",
		Name:      "request_duration_seconds",
		Help:      "Duration of handled HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "web",
		Name:      "panics_total",
		Help:      "Count of recovered handler panics.",
	})

	minedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "mined_blocks_total",
		Help:      "Count of blocks mined and committed by this node.",
	})
	mineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "mine_duration_seconds",
		Help:      "Duration of proof of work searches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "rejected_blocks_total",
		Help:      "Count of blocks rejected by reason.",
	}, []string{"reason"})
	chainLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "length",
		Help:      "Number of blocks in the local chain.",
	})

	admissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "admission",
		Name:      "decisions_total",
		Help:      "Count of admission decisions by store.",
	}, []string{"store", "decision"})

	gossipTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gossip",
		Name:      "deliveries_total",
		Help:      "Count of gossip deliveries to peers.",
	}, []string{"kind", "status"})

	snapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "snapshots_total",
		Help:      "Count of chain snapshots written.",
	}, []string{"status"})
)

// Reasons a block is rejected.
const (
	ReasonLink    = "link"
	ReasonPoW     = "pow"
	ReasonPayload = "payload"
	ReasonOther   = "other"
)

// ObserveRequest records a handled request.
func ObserveRequest(method string, route string, status int, started time.Time) {
	requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
}

// AddPanic records a recovered panic.
func AddPanic() {
	panicsTotal.Inc()
}

// ObserveMined records a committed block and how long the search took.
func ObserveMined(started time.Time) {
	minedTotal.Inc()
	mineDuration.Observe(time.Since(started).Seconds())
}

// ObserveRejected records a rejected block.
func ObserveRejected(reason string) {
	rejectedTotal.WithLabelValues(reason).Inc()
}

// SetChainLength records the current length of the chain.
func SetChainLength(length int) {
	chainLength.Set(float64(length))
}

// ObserveAdmission records an admission decision made by the named store.
func ObserveAdmission(store string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	admissionTotal.WithLabelValues(store, decision).Inc()
}

// ObserveGossip records the outcome of one delivery to a peer. The signature
// matches the gossip result handler.
func ObserveGossip(kind string, host string, err error) {
	gossipTotal.WithLabelValues(kind, status(err)).Inc()
}

// ObserveSnapshot records the outcome of a snapshot. The signature matches
// the worker result handler.
func ObserveSnapshot(length int, err error) {
	snapshotsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		SetChainLength(length)
	}
}

// Reason maps a block rejection error onto a reason label using the
// sentinel errors it wraps.
func Reason(err error, sentinels map[string]error) string {
	for reason, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return ReasonOther
}

// =============================================================================

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

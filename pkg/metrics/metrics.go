// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kmac.
//
// go-kmac is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for the KMAC driver.
// It exposes operation counters, latency histograms and error counters so a
// firmware test harness or service embedding the driver can monitor
// accelerator health, entropy starvation and queue backpressure.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all driver metrics.
	Namespace = "kmac"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelErrorType = "error_type"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpConfigure = "configure"
	OpStart     = "start"
	OpAbsorb    = "absorb"
	OpSqueeze   = "squeeze"
	OpReset     = "reset"
)

var (
	// OperationsTotal counts driver operations by type and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of driver operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of driver operations in
	// seconds. Buckets cover polled register access latencies.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of driver operations in seconds",
			Buckets:   []float64{.000001, .00001, .0001, .001, .01, .1, 1},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal counts errors by operation and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// AbsorbedBytesTotal counts message bytes accepted by the absorb engine.
	AbsorbedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "absorbed_bytes_total",
			Help:      "Total number of message bytes absorbed",
		},
	)

	// EntropyTimeoutsTotal counts entropy refill timeouts.
	EntropyTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entropy_timeouts_total",
			Help:      "Total number of entropy refill timeouts",
		},
	)

	// QueueStallsTotal counts fatal message queue stalls.
	QueueStallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "queue_stalls_total",
			Help:      "Total number of fatal message queue stalls",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a driver operation with its duration and status.
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records an error event. Error types are stable identifiers
// such as "entropy_timeout" or "queue_stall".
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
	switch errorType {
	case "entropy_timeout":
		EntropyTimeoutsTotal.Inc()
	case "queue_stall":
		QueueStallsTotal.Inc()
	}
}

// AddAbsorbedBytes adds to the absorbed byte counter.
func AddAbsorbedBytes(n float64) {
	if !enabled.Load() {
		return
	}
	AbsorbedBytesTotal.Add(n)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchOutcomes       *prometheus.CounterVec
	dispatchLatency        *prometheus.HistogramVec
	bookingFallbacks       prometheus.Counter
	emergencyUnserviceable prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter) {
	out := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetdispatch_dispatch_outcomes_total",
			Help: "Number of dispatch calls by outcome and selection path",
		},
		[]string{"outcome", "path"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetdispatch_dispatch_latency_seconds",
			Help:    "Time spent selecting and booking a vehicle",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"path"},
	)
	fb := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetdispatch_booking_fallbacks_total",
			Help: "Number of candidates skipped because their booking failed",
		},
	)
	em := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetdispatch_emergency_unserviceable_total",
			Help: "Number of emergency requests no vehicle could serve",
		},
	)
	return out, lat, fb, em
}

func init() {
	dispatchOutcomes, dispatchLatency, bookingFallbacks, emergencyUnserviceable = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchOutcomes, dispatchLatency, bookingFallbacks, emergencyUnserviceable)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchOutcomes, dispatchLatency, bookingFallbacks, emergencyUnserviceable = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

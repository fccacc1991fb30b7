package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
)

// PromSink records dispatch results in Prometheus metrics.
type PromSink struct {
	assignments   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	cancellations *prometheus.CounterVec
	needsService  *prometheus.GaugeVec
	fleet         prometheus.Gauge
}

// NewPromSink registers fleet metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.assignments, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetdispatch_assignments_total",
		Help: "Total number of trips assigned to a vehicle",
	}, []string{"vehicle_id", "priority", "emergency"})); err != nil {
		return nil, err
	}
	if s.rejections, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetdispatch_rejections_total",
		Help: "Total number of requests no vehicle was assigned to",
	}, []string{"outcome", "priority"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetdispatch_request_latency_seconds",
		Help:    "Time spent serving a transport request",
		Buckets: prometheus.DefBuckets,
	}, []string{"assigned"})); err != nil {
		return nil, err
	}
	if s.cancellations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetdispatch_trip_changes_total",
		Help: "Total number of cancelled or rescheduled trips",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.needsService, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetdispatch_vehicle_needs_service",
		Help: "1 when the vehicle is overdue for service",
	}, []string{"vehicle_id", "status"})); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetdispatch_fleet_vehicles",
		Help: "Number of registered vehicles",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordAssignment increments the assignment counter.
func (s *PromSink) RecordAssignment(a coremetrics.Assignment) error {
	s.assignments.WithLabelValues(a.VehicleID, a.Priority, strconv.FormatBool(a.Emergency)).Inc()
	s.latency.WithLabelValues("true").Observe(a.Latency.Seconds())
	return nil
}

// RecordRejection increments the rejection counter.
func (s *PromSink) RecordRejection(r coremetrics.Rejection) error {
	s.rejections.WithLabelValues(r.Outcome, r.Priority).Inc()
	s.latency.WithLabelValues("false").Observe(r.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordCancellation(c coremetrics.Cancellation) error {
	kind := "cancelled"
	if c.Rescheduled {
		kind = "rescheduled"
	}
	s.cancellations.WithLabelValues(kind).Inc()
	return nil
}

// RecordVehicleStatus exports the service flag of the vehicle under its
// current status. Series of the previous status are removed.
func (s *PromSink) RecordVehicleStatus(v coremetrics.VehicleStatus) error {
	s.needsService.DeletePartialMatch(prometheus.Labels{"vehicle_id": v.VehicleID})
	val := 0.0
	if v.NeedsService {
		val = 1
	}
	s.needsService.WithLabelValues(v.VehicleID, v.Status).Set(val)
	return nil
}

// RecordFleetSize sets the gauge to the number of registered vehicles.
func (s *PromSink) RecordFleetSize(size int) error {
	if s.fleet != nil {
		s.fleet.Set(float64(size))
	}
	return nil
}

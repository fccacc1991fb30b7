package metrics

import "errors"

// MultiSink fans records out to multiple sinks. Every sink is called even
// when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordAssignment(a Assignment) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordAssignment(a))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordRejection(r Rejection) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordRejection(r))
	}
	return errors.Join(errs...)
}

// RecordCancellation forwards to sinks implementing CancellationRecorder.
func (m *MultiSink) RecordCancellation(c Cancellation) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(CancellationRecorder); ok {
			errs = append(errs, rec.RecordCancellation(c))
		}
	}
	return errors.Join(errs...)
}

// RecordVehicleStatus forwards to sinks implementing VehicleStatusRecorder.
func (m *MultiSink) RecordVehicleStatus(v VehicleStatus) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(VehicleStatusRecorder); ok {
			errs = append(errs, rec.RecordVehicleStatus(v))
		}
	}
	return errors.Join(errs...)
}

// RecordFleetSize forwards to sinks implementing FleetSizeRecorder.
func (m *MultiSink) RecordFleetSize(size int) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FleetSizeRecorder); ok {
			errs = append(errs, rec.RecordFleetSize(size))
		}
	}
	return errors.Join(errs...)
}

package metrics

import "time"

// Assignment records a successful dispatch.
type Assignment struct {
	TripID    string
	VehicleID string
	RouteID   string
	Priority  string
	Emergency bool
	Capacity  int
	Fallbacks int
	Latency   time.Duration
	Time      time.Time
}

// Rejection records a dispatch that ended without an assignment.
type Rejection struct {
	Outcome   string
	RouteID   string
	Priority  string
	Emergency bool
	Capacity  int
	Latency   time.Duration
	Time      time.Time
}

// MetricsSink records dispatch results for observability purposes.
type MetricsSink interface {
	RecordAssignment(a Assignment) error
	RecordRejection(r Rejection) error
}

// Cancellation records a trip cancellation or reschedule.
type Cancellation struct {
	VehicleID   string
	TripID      string
	Rescheduled bool
	Time        time.Time
}

// CancellationRecorder records cancellations.
type CancellationRecorder interface {
	RecordCancellation(c Cancellation) error
}

// VehicleStatus is a snapshot of a vehicle taken by the maintenance sweep or
// after a status change.
type VehicleStatus struct {
	VehicleID        string
	Class            string
	Kind             string
	Status           string
	NeedsService     bool
	DaysSinceService int
	Trips            int
	Time             time.Time
}

// VehicleStatusRecorder records vehicle status snapshots.
type VehicleStatusRecorder interface {
	RecordVehicleStatus(s VehicleStatus) error
}

// FleetSizeRecorder records the number of registered vehicles.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(Assignment) error       { return nil }
func (NopSink) RecordRejection(Rejection) error         { return nil }
func (NopSink) RecordCancellation(Cancellation) error   { return nil }
func (NopSink) RecordVehicleStatus(VehicleStatus) error { return nil }
func (NopSink) RecordFleetSize(int) error               { return nil }

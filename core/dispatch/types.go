package dispatch

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Outcome is the business result of a dispatch call.
type Outcome int

const (
	OutcomeAssigned Outcome = iota
	OutcomeNoVehicleAvailable
	OutcomeEmergencyUnserviceable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAssigned:
		return "assigned"
	case OutcomeNoVehicleAvailable:
		return "no_vehicle_available"
	case OutcomeEmergencyUnserviceable:
		return "emergency_unserviceable"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Result is returned by every dispatch that did not fail with an error.
// VehicleID and TripID are set only when Outcome is OutcomeAssigned.
type Result struct {
	Outcome   Outcome        `json:"outcome"`
	VehicleID string         `json:"vehicle_id,omitempty"`
	TripID    string         `json:"trip_id,omitempty"`
	RouteID   string         `json:"route_id,omitempty"`
	Window    model.Window   `json:"window"`
	Capacity  int            `json:"capacity"`
	Priority  model.Priority `json:"priority"`
	Emergency bool           `json:"emergency"`
	// Fallbacks counts candidates whose booking failed before the winner.
	Fallbacks int           `json:"fallbacks"`
	Latency   time.Duration `json:"-"`
}

// Assigned reports whether a trip was booked.
func (r Result) Assigned() bool { return r.Outcome == OutcomeAssigned }

// RouteLookup resolves route ids. Implementations return an error wrapping
// model.ErrNotFound for unknown ids.
type RouteLookup interface {
	GetRoute(id string) (model.Route, error)
}

// PriorityResolver maps a requester id to its priority class.
type PriorityResolver interface {
	GetPriority(userID string) (model.Priority, error)
}

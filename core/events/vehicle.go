package events

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// StatusEvent is emitted on every applied operational status transition.
// Reason is "manual", "maintenance_sweep" or "maintenance".
type StatusEvent struct {
	VehicleID string                  `json:"vehicle_id"`
	From      model.OperationalStatus `json:"from"`
	To        model.OperationalStatus `json:"to"`
	Reason    string                  `json:"reason"`
	Time      time.Time               `json:"time"`
}

// MaintenanceEvent is emitted when maintenance was performed.
type MaintenanceEvent struct {
	VehicleID string    `json:"vehicle_id"`
	Details   string    `json:"details"`
	Time      time.Time `json:"time"`
}

// VehicleRemovedEvent is emitted when a vehicle leaves the fleet. Its
// calendar is discarded with it.
type VehicleRemovedEvent struct {
	VehicleID string    `json:"vehicle_id"`
	Time      time.Time `json:"time"`
}

// LocationEvent is emitted for each accepted location update.
type LocationEvent struct {
	VehicleID  string    `json:"vehicle_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DeltaKm    float64   `json:"delta_km"`
	DistanceKm float64   `json:"distance_km"`
	Time       time.Time `json:"time"`
}

// Name returns the wire name of a known event, or "" for unknown values.
func Name(ev any) string {
	switch ev.(type) {
	case AssignmentEvent:
		return "assignment"
	case RejectionEvent:
		return "rejection"
	case CancellationEvent:
		return "cancellation"
	case RescheduleEvent:
		return "reschedule"
	case StatusEvent:
		return "status"
	case MaintenanceEvent:
		return "maintenance"
	case LocationEvent:
		return "location"
	case VehicleRemovedEvent:
		return "vehicle_removed"
	default:
		return ""
	}
}

package events

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// AssignmentEvent is published once per successful dispatch, after the trip
// was booked on the vehicle calendar.
type AssignmentEvent struct {
	TripID        string         `json:"trip_id"`
	VehicleID     string         `json:"vehicle_id"`
	RequesterID   string         `json:"requester_id,omitempty"`
	RouteID       string         `json:"route_id,omitempty"`
	Priority      model.Priority `json:"priority"`
	Window        model.Window   `json:"window"`
	Capacity      int            `json:"capacity"`
	Emergency     bool           `json:"emergency"`
	EmergencyType string         `json:"emergency_type,omitempty"`
	// Fallbacks counts candidates that lost a booking race before this one.
	Fallbacks int       `json:"fallbacks"`
	Time      time.Time `json:"time"`
}

// RejectionEvent is published when a request produced no assignment.
// Outcome is the dispatch outcome name.
type RejectionEvent struct {
	Outcome     string         `json:"outcome"`
	RequesterID string         `json:"requester_id,omitempty"`
	RouteID     string         `json:"route_id,omitempty"`
	Priority    model.Priority `json:"priority"`
	Window      model.Window   `json:"window"`
	Capacity    int            `json:"capacity"`
	Emergency   bool           `json:"emergency"`
	Time        time.Time      `json:"time"`
}

// CancellationEvent is published when a trip is removed from a calendar.
type CancellationEvent struct {
	VehicleID string       `json:"vehicle_id"`
	TripID    string       `json:"trip_id"`
	RouteID   string       `json:"route_id,omitempty"`
	Window    model.Window `json:"window"`
	Time      time.Time    `json:"time"`
}

// RescheduleEvent is published when a trip moves to a new window.
type RescheduleEvent struct {
	VehicleID string       `json:"vehicle_id"`
	TripID    string       `json:"trip_id"`
	From      model.Window `json:"from"`
	To        model.Window `json:"to"`
	Time      time.Time    `json:"time"`
}

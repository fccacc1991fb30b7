package model

import (
	"fmt"
	"time"
)

// Priority is the requester priority class derived from the requester role.
// Higher values rank first.
type Priority int

const (
	PriorityUnknown Priority = iota
	PriorityUnsubscribedStudent
	PrioritySubscribedStudent
	PriorityStaff
)

func (p Priority) String() string {
	switch p {
	case PriorityStaff:
		return "staff"
	case PrioritySubscribedStudent:
		return "subscribed_student"
	case PriorityUnsubscribedStudent:
		return "unsubscribed_student"
	default:
		return "unknown"
	}
}

// ParsePriority converts a configuration or API string to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "unknown":
		return PriorityUnknown, nil
	case "staff", "lecturer":
		return PriorityStaff, nil
	case "subscribed_student":
		return PrioritySubscribedStudent, nil
	case "unsubscribed_student", "student":
		return PriorityUnsubscribedStudent, nil
	default:
		return PriorityUnknown, fmt.Errorf("unknown priority %q: %w", s, ErrInvalidRequest)
	}
}

// Request is an ephemeral transport request consumed by the dispatcher.
type Request struct {
	RequesterID   string
	RouteID       string
	Destination   string
	Window        Window
	Capacity      int
	Priority      Priority
	Emergency     bool
	EmergencyType string
}

// Validate checks the fields that do not depend on route resolution. A zero
// arrival is accepted when a route is given since the arrival can be derived
// from the route travel time.
func (r Request) Validate() error {
	if r.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative: %w", ErrInvalidRequest)
	}
	if r.RouteID == "" && r.Capacity == 0 {
		return fmt.Errorf("capacity is required without a route: %w", ErrInvalidRequest)
	}
	if r.Window.Departure.IsZero() {
		return fmt.Errorf("departure is required: %w", ErrInvalidWindow)
	}
	if r.Window.Arrival.IsZero() && r.RouteID != "" {
		return nil
	}
	return r.Window.Validate()
}

// Route is the read-only view of a route consumed by the dispatcher.
type Route struct {
	ID              string
	Name            string
	Type            string
	Stops           []string // start, intermediate stops, end
	DistanceKm      float64
	TravelTime      time.Duration
	Active          bool
	MinCapacity     int
	CapacityCeiling int
	Assigned        []string
}

// Start returns the first stop of the route.
func (r Route) Start() string {
	if len(r.Stops) == 0 {
		return ""
	}
	return r.Stops[0]
}

// End returns the last stop of the route.
func (r Route) End() string {
	if len(r.Stops) == 0 {
		return ""
	}
	return r.Stops[len(r.Stops)-1]
}

// CanAccommodate reports whether the vehicles currently assigned to the route
// can carry n passengers between them.
func (r Route) CanAccommodate(n int) bool {
	return n >= 0 && n <= r.CapacityCeiling
}

// HasStop reports whether the location is served by the route.
func (r Route) HasStop(location string) bool {
	for _, s := range r.Stops {
		if s == location {
			return true
		}
	}
	return false
}

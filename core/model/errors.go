package model

import "errors"

var (
	// ErrNotFound is returned when a vehicle, route or trip id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a trip overlaps an existing one or when an
	// id is already registered.
	ErrConflict = errors.New("conflict")
	// ErrInvalidWindow is returned when departure is not before arrival.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrInvalidVehicle is returned for malformed vehicle descriptions.
	ErrInvalidVehicle = errors.New("invalid vehicle")
	// ErrInvalidTransition is returned for unknown operational statuses.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidRoute is returned when dispatching on an inactive route.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrInvalidRequest is returned for malformed transport requests.
	ErrInvalidRequest = errors.New("invalid request")
)

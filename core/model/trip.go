package model

import (
	"fmt"
	"time"
)

// Window is a half-open time range [Departure, Arrival).
type Window struct {
	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
}

// NewWindow builds a Window and rejects departure >= arrival.
func NewWindow(departure, arrival time.Time) (Window, error) {
	w := Window{Departure: departure, Arrival: arrival}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate returns ErrInvalidWindow when departure is not strictly before arrival.
func (w Window) Validate() error {
	if !w.Departure.Before(w.Arrival) {
		return fmt.Errorf("departure %s not before arrival %s: %w",
			w.Departure.Format(time.RFC3339), w.Arrival.Format(time.RFC3339), ErrInvalidWindow)
	}
	return nil
}

// Overlaps reports whether the two windows share any instant:
// [d1,a1) and [d2,a2) overlap iff d1 < a2 and d2 < a1.
func (w Window) Overlaps(o Window) bool {
	return w.Departure.Before(o.Arrival) && o.Departure.Before(w.Arrival)
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration { return w.Arrival.Sub(w.Departure) }

// Pad extends the window by d on both sides.
func (w Window) Pad(d time.Duration) Window {
	if d <= 0 {
		return w
	}
	return Window{Departure: w.Departure.Add(-d), Arrival: w.Arrival.Add(d)}
}

// TripInterval is one scheduled trip on a vehicle calendar. It is never
// mutated in place once inserted.
type TripInterval struct {
	TripID  string `json:"trip_id"`
	RouteID string `json:"route_id,omitempty"`
	Window
}

// Validate checks the trip id and window.
func (t TripInterval) Validate() error {
	if t.TripID == "" {
		return fmt.Errorf("trip id is required: %w", ErrInvalidRequest)
	}
	return t.Window.Validate()
}

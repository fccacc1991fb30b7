// Package calendar implements the per-vehicle trip calendar: an ordered set of
// non-overlapping half-open intervals.
//
// A Calendar is not safe for concurrent use. The fleet package serializes
// access to each calendar through the owning vehicle's lock.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Calendar holds trips ordered by departure then trip id.
type Calendar struct {
	trips []model.TripInterval
	// buffer is the minimum turnaround kept free around every trip.
	buffer time.Duration
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithTurnaround keeps at least d free between two consecutive trips.
func WithTurnaround(d time.Duration) Option {
	return func(c *Calendar) {
		if d > 0 {
			c.buffer = d
		}
	}
}

// New returns an empty calendar.
func New(opts ...Option) *Calendar {
	c := &Calendar{}
	for _, o := range opts {
		o(c)
	}
	return c
}

func less(a, b model.TripInterval) bool {
	if a.Departure.Equal(b.Departure) {
		return a.TripID < b.TripID
	}
	return a.Departure.Before(b.Departure)
}

func (c *Calendar) index(tripID string) int {
	for i, t := range c.trips {
		if t.TripID == tripID {
			return i
		}
	}
	return -1
}

// conflict returns the first trip other than skip overlapping w.
func (c *Calendar) conflict(w model.Window, skip string) (model.TripInterval, bool) {
	padded := w.Pad(c.buffer)
	for _, t := range c.trips {
		if t.TripID == skip {
			continue
		}
		if t.Departure.After(padded.Arrival) {
			break
		}
		if padded.Overlaps(t.Window) {
			return t, true
		}
	}
	return model.TripInterval{}, false
}

// Overlapping reports whether any scheduled trip overlaps w.
func (c *Calendar) Overlapping(w model.Window) bool {
	_, ok := c.conflict(w, "")
	return ok
}

// Insert adds the trip if it overlaps no existing trip; otherwise it returns
// an error wrapping model.ErrConflict.
func (c *Calendar) Insert(t model.TripInterval) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if c.index(t.TripID) >= 0 {
		return fmt.Errorf("trip %s already scheduled: %w", t.TripID, model.ErrConflict)
	}
	if other, ok := c.conflict(t.Window, ""); ok {
		return fmt.Errorf("trip %s overlaps trip %s: %w", t.TripID, other.TripID, model.ErrConflict)
	}
	c.insertSorted(t)
	return nil
}

func (c *Calendar) insertSorted(t model.TripInterval) {
	i := sort.Search(len(c.trips), func(i int) bool { return less(t, c.trips[i]) })
	c.trips = append(c.trips, model.TripInterval{})
	copy(c.trips[i+1:], c.trips[i:])
	c.trips[i] = t
}

// Cancel removes the trip. Cancelling an unknown or already removed trip
// returns an error wrapping model.ErrNotFound and leaves the calendar as is.
func (c *Calendar) Cancel(tripID string) (model.TripInterval, error) {
	i := c.index(tripID)
	if i < 0 {
		return model.TripInterval{}, fmt.Errorf("trip %s: %w", tripID, model.ErrNotFound)
	}
	t := c.trips[i]
	c.trips = append(c.trips[:i], c.trips[i+1:]...)
	return t, nil
}

// Update moves the trip to a new window. The change is atomic: when the new
// window conflicts with a different trip the original trip is kept unchanged.
func (c *Calendar) Update(tripID string, w model.Window) (model.TripInterval, error) {
	if err := w.Validate(); err != nil {
		return model.TripInterval{}, err
	}
	i := c.index(tripID)
	if i < 0 {
		return model.TripInterval{}, fmt.Errorf("trip %s: %w", tripID, model.ErrNotFound)
	}
	if other, ok := c.conflict(w, tripID); ok {
		return model.TripInterval{}, fmt.Errorf("trip %s overlaps trip %s: %w", tripID, other.TripID, model.ErrConflict)
	}
	updated := c.trips[i]
	updated.Window = w
	c.trips = append(c.trips[:i], c.trips[i+1:]...)
	c.insertSorted(updated)
	return updated, nil
}

// Get returns the trip with the given id.
func (c *Calendar) Get(tripID string) (model.TripInterval, bool) {
	if i := c.index(tripID); i >= 0 {
		return c.trips[i], true
	}
	return model.TripInterval{}, false
}

// Next returns the trip with the earliest departure strictly after now.
func (c *Calendar) Next(now time.Time) (model.TripInterval, bool) {
	for _, t := range c.trips {
		if t.Departure.After(now) {
			return t, true
		}
	}
	return model.TripInterval{}, false
}

// Count returns the number of scheduled trips.
func (c *Calendar) Count() int { return len(c.trips) }

// CountOn returns the number of trips departing on the same calendar day as day.
func (c *Calendar) CountOn(day time.Time) int {
	y, m, d := day.Date()
	n := 0
	for _, t := range c.trips {
		ty, tm, td := t.Departure.In(day.Location()).Date()
		if ty == y && tm == m && td == d {
			n++
		}
	}
	return n
}

// List returns a copy of the trips ordered by departure then trip id.
func (c *Calendar) List() []model.TripInterval {
	out := make([]model.TripInterval, len(c.trips))
	copy(out, c.trips)
	return out
}

// Booked returns the total time covered by trips intersecting w.
func (c *Calendar) Booked(w model.Window) time.Duration {
	var total time.Duration
	for _, t := range c.trips {
		if !t.Overlaps(w) {
			continue
		}
		start, end := t.Departure, t.Arrival
		if start.Before(w.Departure) {
			start = w.Departure
		}
		if end.After(w.Arrival) {
			end = w.Arrival
		}
		total += end.Sub(start)
	}
	return total
}

// Package fleet holds the fleet registry and the per-vehicle state machine.
//
// The Registry maps vehicle ids to VehicleState values and keeps the
// registration order, which is the stable enumeration order used by the
// dispatcher. Membership is guarded by a read/write lock; each VehicleState
// carries its own lock so that bookings on different vehicles proceed in
// parallel. Lock order is always registry then vehicle.
package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/calendar"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Registry is the fleet membership owned by the surrounding service.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*VehicleState
	order      []string
	turnaround time.Duration
	maxPerDay  int
}

// Option configures a Registry.
type Option func(*Registry)

// WithTurnaround keeps d free between consecutive trips of every vehicle.
func WithTurnaround(d time.Duration) Option {
	return func(r *Registry) { r.turnaround = d }
}

// WithMaxTripsPerDay caps the number of trips departing on one day per
// vehicle. Zero means unlimited.
func WithMaxTripsPerDay(n int) Option {
	return func(r *Registry) { r.maxPerDay = n }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{byID: make(map[string]*VehicleState)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds a vehicle. Duplicate ids fail with model.ErrConflict.
func (r *Registry) Register(v model.Vehicle) (*VehicleState, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[v.ID]; ok {
		return nil, fmt.Errorf("vehicle %s already registered: %w", v.ID, model.ErrConflict)
	}
	st := newVehicleState(v, r.maxPerDay, calendar.WithTurnaround(r.turnaround))
	r.byID[v.ID] = st
	r.order = append(r.order, v.ID)
	return st, nil
}

// Remove deletes a vehicle. A booking racing with the removal fails with
// model.ErrNotFound.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("vehicle %s: %w", id, model.ErrNotFound)
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	st.mu.Lock()
	st.removed = true
	st.mu.Unlock()
	return nil
}

// Get returns the state of the given vehicle.
func (r *Registry) Get(id string) (*VehicleState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, model.ErrNotFound)
	}
	return st, nil
}

// Len returns the number of registered vehicles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Vehicles returns the registered vehicles in registration order.
func (r *Registry) Vehicles() []*VehicleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*VehicleState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Scan calls fn for every vehicle in registration order while holding the
// read lock. Iteration stops when fn returns false. fn must not call back
// into Register or Remove.
func (r *Registry) Scan(fn func(i int, s *VehicleState) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, id := range r.order {
		if !fn(i, r.byID[id]) {
			return
		}
	}
}

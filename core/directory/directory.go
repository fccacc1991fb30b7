// Package directory holds the routes and requester roles consulted by the
// dispatcher. It is an in-memory stand-in for the external route and user
// services and keeps each route's assigned vehicles and capacity ceiling up
// to date from trip events: a vehicle serves a route while it holds at least
// one trip on it.
package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// CapacityLookup returns the capacity of a registered vehicle.
type CapacityLookup func(vehicleID string) (int, error)

// Directory implements dispatch.RouteLookup and dispatch.PriorityResolver.
type Directory struct {
	mu       sync.RWMutex
	routes   map[string]model.Route
	trips    map[string]map[string]map[string]struct{} // route -> vehicle -> trip ids
	users    map[string]model.Priority
	capacity CapacityLookup
	log      logger.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithCapacityLookup sets the vehicle capacity source used to compute route
// capacity ceilings.
func WithCapacityLookup(fn CapacityLookup) Option {
	return func(d *Directory) { d.capacity = fn }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) { d.log = l }
}

// New creates an empty directory.
func New(opts ...Option) *Directory {
	d := &Directory{
		routes: map[string]model.Route{},
		trips:  map[string]map[string]map[string]struct{}{},
		users:  map[string]model.Priority{},
		log:    logger.Nop{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func cloneRoute(r model.Route) model.Route {
	r.Stops = append([]string(nil), r.Stops...)
	r.Assigned = append([]string(nil), r.Assigned...)
	return r
}

// UpsertRoute adds or replaces a route. Assignments of an existing route are
// kept when the new value carries none.
func (d *Directory) UpsertRoute(r model.Route) error {
	if r.ID == "" {
		return fmt.Errorf("route id is required: %w", model.ErrInvalidRoute)
	}
	if r.MinCapacity < 0 || r.TravelTime < 0 || r.DistanceKm < 0 {
		return fmt.Errorf("route %s: negative capacity, distance or travel time: %w", r.ID, model.ErrInvalidRoute)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.routes[r.ID]; ok && len(r.Assigned) == 0 {
		r.Assigned = old.Assigned
		r.CapacityCeiling = old.CapacityCeiling
	}
	d.routes[r.ID] = cloneRoute(r)
	return nil
}

// GetRoute returns a copy of the route.
func (d *Directory) GetRoute(id string) (model.Route, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.routes[id]
	if !ok {
		return model.Route{}, fmt.Errorf("route %s: %w", id, model.ErrNotFound)
	}
	return cloneRoute(r), nil
}

// Routes returns every route sorted by id.
func (d *Directory) Routes() []model.Route {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Route, 0, len(d.routes))
	for _, r := range d.routes {
		out = append(out, cloneRoute(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetRouteActive toggles whether a route accepts dispatches.
func (d *Directory) SetRouteActive(id string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.routes[id]
	if !ok {
		return fmt.Errorf("route %s: %w", id, model.ErrNotFound)
	}
	r.Active = active
	d.routes[id] = r
	return nil
}

// AssignVehicle records that vehicleID serves the route and recomputes the
// route capacity ceiling. Assigning the same vehicle twice is a no-op.
func (d *Directory) AssignVehicle(routeID, vehicleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assignLocked(routeID, vehicleID)
}

func (d *Directory) assignLocked(routeID, vehicleID string) error {
	r, ok := d.routes[routeID]
	if !ok {
		return fmt.Errorf("route %s: %w", routeID, model.ErrNotFound)
	}
	for _, id := range r.Assigned {
		if id == vehicleID {
			return nil
		}
	}
	r.Assigned = append(append([]string(nil), r.Assigned...), vehicleID)
	r.CapacityCeiling = d.ceiling(r.Assigned)
	d.routes[routeID] = r
	return nil
}

// UnassignVehicle drops vehicleID from the route, forgets its trips there and
// recomputes the capacity ceiling. Unassigning a vehicle the route does not
// list is a no-op.
func (d *Directory) UnassignVehicle(routeID, vehicleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unassignLocked(routeID, vehicleID)
}

func (d *Directory) unassignLocked(routeID, vehicleID string) error {
	r, ok := d.routes[routeID]
	if !ok {
		return fmt.Errorf("route %s: %w", routeID, model.ErrNotFound)
	}
	if byVehicle := d.trips[routeID]; byVehicle != nil {
		delete(byVehicle, vehicleID)
	}
	kept := make([]string, 0, len(r.Assigned))
	for _, id := range r.Assigned {
		if id != vehicleID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(r.Assigned) {
		return nil
	}
	r.Assigned = kept
	r.CapacityCeiling = d.ceiling(kept)
	d.routes[routeID] = r
	return nil
}

// ReleaseVehicle unassigns vehicleID from every route.
func (d *Directory) ReleaseVehicle(vehicleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.routes {
		_ = d.unassignLocked(id, vehicleID)
	}
}

// BookTrip records a trip of vehicleID on the route and assigns the vehicle.
func (d *Directory) BookTrip(routeID, vehicleID, tripID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.assignLocked(routeID, vehicleID); err != nil {
		return err
	}
	byVehicle := d.trips[routeID]
	if byVehicle == nil {
		byVehicle = map[string]map[string]struct{}{}
		d.trips[routeID] = byVehicle
	}
	if byVehicle[vehicleID] == nil {
		byVehicle[vehicleID] = map[string]struct{}{}
	}
	byVehicle[vehicleID][tripID] = struct{}{}
	return nil
}

// ReleaseTrip forgets a trip of vehicleID on the route. The vehicle is
// unassigned once its last trip there is gone.
func (d *Directory) ReleaseTrip(routeID, vehicleID, tripID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.routes[routeID]; !ok {
		return fmt.Errorf("route %s: %w", routeID, model.ErrNotFound)
	}
	held := d.trips[routeID][vehicleID]
	delete(held, tripID)
	if len(held) > 0 {
		return nil
	}
	return d.unassignLocked(routeID, vehicleID)
}

// ceiling sums the capacities of the assigned vehicles. Vehicles the lookup
// no longer knows count for nothing.
func (d *Directory) ceiling(ids []string) int {
	if d.capacity == nil {
		return 0
	}
	total := 0
	for _, id := range ids {
		c, err := d.capacity(id)
		if err != nil {
			d.log.Debugf("capacity of %s unavailable: %v", id, err)
			continue
		}
		total += c
	}
	return total
}

// SetUser records the priority class of a requester.
func (d *Directory) SetUser(id string, p model.Priority) {
	d.mu.Lock()
	d.users[id] = p
	d.mu.Unlock()
}

// GetPriority returns the priority class of a requester.
func (d *Directory) GetPriority(userID string) (model.Priority, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.users[userID]
	if !ok {
		return model.PriorityUnknown, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return p, nil
}

// Listen keeps route assignments current from the assignment, cancellation
// and vehicle removal events published on src until ctx is done.
func (d *Directory) Listen(ctx context.Context, src eventbus.Source[eventbus.Event]) <-chan struct{} {
	return eventbus.Listen(ctx, src, func(ev eventbus.Event) {
		switch e := ev.(type) {
		case events.AssignmentEvent:
			if e.RouteID == "" {
				return
			}
			if err := d.BookTrip(e.RouteID, e.VehicleID, e.TripID); err != nil {
				d.log.Warnf("route assignment for trip %s: %v", e.TripID, err)
			}
		case events.CancellationEvent:
			if e.RouteID == "" {
				return
			}
			if err := d.ReleaseTrip(e.RouteID, e.VehicleID, e.TripID); err != nil {
				d.log.Warnf("route release for trip %s: %v", e.TripID, err)
			}
		case events.VehicleRemovedEvent:
			d.ReleaseVehicle(e.VehicleID)
		}
	})
}

// Package dispatch matches transport requests to fleet vehicles and books the
// resulting trips.
//
// The Dispatcher scans the registry in registration order, keeps vehicles that
// can seat the required capacity and are free for the window, orders them
// with a Selector and books the first one. A booking that loses a race with a
// concurrent dispatch fails with model.ErrConflict inside the vehicle lock and
// the next candidate is tried. Normal requests skip vehicles the maintenance
// policy flags as overdue; emergency requests keep them eligible.
//
// Manager wraps the Dispatcher with the fleet operations exposed to the
// service layer, publishes events and records metrics.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/maintenance"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Dispatcher selects and books vehicles for requests.
type Dispatcher struct {
	fleet     *fleet.Registry
	policy    maintenance.Policy
	routes    RouteLookup
	normal    Selector
	emergency Selector
	now       func() time.Time
	newID     func() string
	log       logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRoutes sets the route lookup used for requests carrying a route id.
func WithRoutes(r RouteLookup) Option { return func(d *Dispatcher) { d.routes = r } }

// WithSelector replaces the normal path ordering.
func WithSelector(s Selector) Option { return func(d *Dispatcher) { d.normal = s } }

// WithEmergencySelector replaces the emergency path ordering.
func WithEmergencySelector(s Selector) Option { return func(d *Dispatcher) { d.emergency = s } }

// WithClock sets the time source used for maintenance assessment.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// WithTripIDs sets the trip id generator.
func WithTripIDs(gen func() string) Option { return func(d *Dispatcher) { d.newID = gen } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(reg *fleet.Registry, policy maintenance.Policy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		fleet:     reg,
		policy:    policy,
		normal:    SmallestFitSelector{},
		emergency: EmergencySelector{},
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.Nop{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// plan is a validated request with the route applied.
type plan struct {
	window   model.Window
	capacity int
}

func (d *Dispatcher) resolve(req model.Request) (plan, error) {
	if err := req.Validate(); err != nil {
		return plan{}, err
	}
	p := plan{window: req.Window, capacity: req.Capacity}
	if req.RouteID != "" {
		if d.routes == nil {
			return plan{}, fmt.Errorf("route %s: %w", req.RouteID, model.ErrNotFound)
		}
		r, err := d.routes.GetRoute(req.RouteID)
		if err != nil {
			return plan{}, err
		}
		if !r.Active {
			return plan{}, fmt.Errorf("route %s is inactive: %w", r.ID, model.ErrInvalidRoute)
		}
		if req.Destination != "" && !r.HasStop(req.Destination) {
			return plan{}, fmt.Errorf("route %s does not stop at %q: %w", r.ID, req.Destination, model.ErrInvalidRequest)
		}
		if r.MinCapacity > p.capacity {
			p.capacity = r.MinCapacity
		}
		if p.window.Arrival.IsZero() {
			if r.TravelTime <= 0 {
				return plan{}, fmt.Errorf("route %s has no travel time to derive arrival: %w", r.ID, model.ErrInvalidWindow)
			}
			p.window.Arrival = p.window.Departure.Add(r.TravelTime)
		}
	}
	if p.capacity <= 0 {
		return plan{}, fmt.Errorf("no capacity requirement: %w", model.ErrInvalidRequest)
	}
	if err := p.window.Validate(); err != nil {
		return plan{}, err
	}
	return p, nil
}

// candidates returns the eligible vehicles in registration order.
func (d *Dispatcher) candidates(p plan, emergency bool) []Candidate {
	now := d.now()
	var out []Candidate
	d.fleet.Scan(func(i int, s *fleet.VehicleState) bool {
		v, available, overdue := s.Check(p.window, d.policy, now)
		if !available || !v.CanBoard(p.capacity) {
			return true
		}
		if overdue && !emergency {
			return true
		}
		out = append(out, Candidate{State: s, Vehicle: v, Index: i})
		return true
	})
	return out
}

// Dispatch serves a request. NoVehicleAvailable and EmergencyUnserviceable
// are returned as outcomes; errors are reserved for invalid requests and
// failed route lookups.
func (d *Dispatcher) Dispatch(req model.Request) (Result, error) {
	start := time.Now()
	path := "normal"
	sel := d.normal
	if req.Emergency {
		path = "emergency"
		sel = d.emergency
	}
	p, err := d.resolve(req)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		RouteID:   req.RouteID,
		Window:    p.window,
		Capacity:  p.capacity,
		Priority:  req.Priority,
		Emergency: req.Emergency,
	}

	cands := d.candidates(p, req.Emergency)
	sel.Order(cands)
	booked := false
	for _, c := range cands {
		trip := model.TripInterval{TripID: d.newID(), RouteID: req.RouteID, Window: p.window}
		err := c.State.Book(trip)
		if err == nil {
			booked = true
			res.Outcome = OutcomeAssigned
			res.VehicleID = c.Vehicle.ID
			res.TripID = trip.TripID
			break
		}
		if !errors.Is(err, model.ErrConflict) && !errors.Is(err, model.ErrNotFound) {
			return Result{}, err
		}
		res.Fallbacks++
		bookingFallbacks.Inc()
		d.log.Debugf("booking on %s failed, trying next candidate: %v", c.Vehicle.ID, err)
	}

	if !booked {
		res.Outcome = OutcomeNoVehicleAvailable
		if req.Emergency {
			res.Outcome = OutcomeEmergencyUnserviceable
			emergencyUnserviceable.Inc()
			d.log.Errorf("emergency request from %q (%s) unserviceable for %s - %s, capacity %d",
				req.RequesterID, req.EmergencyType,
				p.window.Departure.Format(time.RFC3339), p.window.Arrival.Format(time.RFC3339), p.capacity)
		}
	}
	res.Latency = time.Since(start)
	dispatchOutcomes.WithLabelValues(res.Outcome.String(), path).Inc()
	dispatchLatency.WithLabelValues(path).Observe(res.Latency.Seconds())
	d.log.Debugw("dispatch", map[string]any{
		"outcome":    res.Outcome.String(),
		"path":       path,
		"selector":   sel.Name(),
		"candidates": len(cands),
		"vehicle_id": res.VehicleID,
		"fallbacks":  res.Fallbacks,
	})
	return res, nil
}

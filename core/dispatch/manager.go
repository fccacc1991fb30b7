package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/maintenance"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Status change reasons carried by events.StatusEvent.
const (
	ReasonManual      = "manual"
	ReasonSweep       = "maintenance_sweep"
	ReasonMaintenance = "maintenance"
)

// ManagerDeps groups the collaborators of a Manager. Fleet is required;
// everything else is optional.
type ManagerDeps struct {
	Fleet   *fleet.Registry
	Policy  maintenance.Policy
	Routes  RouteLookup
	Users   PriorityResolver
	Bus     eventbus.EventBus
	Metrics metrics.MetricsSink
	Logger  logger.Logger
	Clock   func() time.Time
	TripIDs func() string
}

// Manager exposes the fleet and dispatch operations to the service layer.
type Manager struct {
	fleet   *fleet.Registry
	disp    *Dispatcher
	policy  maintenance.Policy
	users   PriorityResolver
	bus     eventbus.EventBus
	metrics metrics.MetricsSink
	log     logger.Logger
	now     func() time.Time
}

// NewManager creates a manager and its dispatcher.
func NewManager(d ManagerDeps) (*Manager, error) {
	if d.Fleet == nil {
		return nil, fmt.Errorf("dispatch: nil fleet registry provided to NewManager")
	}
	if d.Logger == nil {
		d.Logger = logger.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NopSink{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Policy == (maintenance.Policy{}) {
		d.Policy = maintenance.DefaultPolicy()
	}
	opts := []Option{WithRoutes(d.Routes), WithClock(d.Clock), WithLogger(d.Logger)}
	if d.TripIDs != nil {
		opts = append(opts, WithTripIDs(d.TripIDs))
	}
	return &Manager{
		fleet:   d.Fleet,
		disp:    NewDispatcher(d.Fleet, d.Policy, opts...),
		policy:  d.Policy,
		users:   d.Users,
		bus:     d.Bus,
		metrics: d.Metrics,
		log:     d.Logger,
		now:     d.Clock,
	}, nil
}

// Policy returns the maintenance policy in use.
func (m *Manager) Policy() maintenance.Policy { return m.policy }

func (m *Manager) publish(ev any) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Manager) recordFleetSize() {
	if fr, ok := m.metrics.(metrics.FleetSizeRecorder); ok {
		if err := fr.RecordFleetSize(m.fleet.Len()); err != nil {
			m.log.Errorf("fleet size metrics error: %v", err)
		}
	}
}

// RegisterVehicle adds a vehicle to the fleet. A zero last service date is
// taken as serviced now.
func (m *Manager) RegisterVehicle(v model.Vehicle) error {
	if v.LastService.IsZero() {
		v.LastService = m.now()
	}
	if _, err := m.fleet.Register(v); err != nil {
		return err
	}
	m.log.Infof("registered %s %s %s (capacity %d)", v.Class, v.Kind, v.ID, v.Capacity)
	m.recordFleetSize()
	return nil
}

// RemoveVehicle deletes a vehicle from the fleet.
func (m *Manager) RemoveVehicle(id string) error {
	if err := m.fleet.Remove(id); err != nil {
		return err
	}
	m.log.Infof("removed vehicle %s", id)
	m.recordFleetSize()
	m.publish(events.VehicleRemovedEvent{VehicleID: id, Time: m.now()})
	return nil
}

// Dispatch resolves the requester priority, serves the request and emits the
// assignment or rejection.
func (m *Manager) Dispatch(req model.Request) (Result, error) {
	m.resolvePriority(&req)
	res, err := m.disp.Dispatch(req)
	if err != nil {
		m.log.Warnf("dispatch rejected for requester %q: %v", req.RequesterID, err)
		return res, err
	}
	now := m.now()
	if res.Assigned() {
		m.log.Infof("assigned trip %s on %s to requester %q (%s)", res.TripID, res.VehicleID, req.RequesterID, res.Priority)
		if req.Emergency {
			m.assignEmergencyDriver(res.VehicleID, req.EmergencyType)
		}
		m.publish(events.AssignmentEvent{
			TripID:        res.TripID,
			VehicleID:     res.VehicleID,
			RequesterID:   req.RequesterID,
			RouteID:       res.RouteID,
			Priority:      res.Priority,
			Window:        res.Window,
			Capacity:      res.Capacity,
			Emergency:     req.Emergency,
			EmergencyType: req.EmergencyType,
			Fallbacks:     res.Fallbacks,
			Time:          now,
		})
		if err := m.metrics.RecordAssignment(metrics.Assignment{
			TripID:    res.TripID,
			VehicleID: res.VehicleID,
			RouteID:   res.RouteID,
			Priority:  res.Priority.String(),
			Emergency: req.Emergency,
			Capacity:  res.Capacity,
			Fallbacks: res.Fallbacks,
			Latency:   res.Latency,
			Time:      now,
		}); err != nil {
			m.log.Errorf("metrics error: %v", err)
		}
		return res, nil
	}

	m.log.Infof("no vehicle for requester %q: %s", req.RequesterID, res.Outcome)
	m.publish(events.RejectionEvent{
		Outcome:     res.Outcome.String(),
		RequesterID: req.RequesterID,
		RouteID:     res.RouteID,
		Priority:    res.Priority,
		Window:      res.Window,
		Capacity:    res.Capacity,
		Emergency:   req.Emergency,
		Time:        now,
	})
	if err := m.metrics.RecordRejection(metrics.Rejection{
		Outcome:   res.Outcome.String(),
		RouteID:   res.RouteID,
		Priority:  res.Priority.String(),
		Emergency: req.Emergency,
		Capacity:  res.Capacity,
		Latency:   res.Latency,
		Time:      now,
	}); err != nil {
		m.log.Errorf("metrics error: %v", err)
	}
	return res, nil
}

// resolvePriority fills the priority from the requester role. Priority is
// only reported; it never gates matching.
func (m *Manager) resolvePriority(req *model.Request) {
	if req.Priority != model.PriorityUnknown || req.RequesterID == "" || m.users == nil {
		return
	}
	p, err := m.users.GetPriority(req.RequesterID)
	if err != nil {
		m.log.Warnf("priority for requester %q unknown: %v", req.RequesterID, err)
		return
	}
	req.Priority = p
}

func (m *Manager) assignEmergencyDriver(vehicleID, emergencyType string) {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return
	}
	if _, ok := st.Driver(); ok {
		return
	}
	opts := DriverOptions{Emergency: true}
	if emergencyType != "" {
		opts.SpecialRequirements = []string{emergencyType}
	}
	st.AssignDriver(opts.driver(m.now()))
}

// CancelTrip removes a booked trip.
func (m *Manager) CancelTrip(vehicleID, tripID string) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	t, err := st.Cancel(tripID)
	if err != nil {
		return err
	}
	now := m.now()
	m.publish(events.CancellationEvent{VehicleID: vehicleID, TripID: tripID, RouteID: t.RouteID, Window: t.Window, Time: now})
	m.recordCancellation(metrics.Cancellation{VehicleID: vehicleID, TripID: tripID, Time: now})
	return nil
}

// RescheduleTrip moves a booked trip to a new window on the same vehicle.
func (m *Manager) RescheduleTrip(vehicleID, tripID string, w model.Window) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	prev, updated, err := st.Reschedule(tripID, w)
	if err != nil {
		return err
	}
	now := m.now()
	m.publish(events.RescheduleEvent{VehicleID: vehicleID, TripID: tripID, From: prev.Window, To: updated.Window, Time: now})
	m.recordCancellation(metrics.Cancellation{VehicleID: vehicleID, TripID: tripID, Rescheduled: true, Time: now})
	return nil
}

func (m *Manager) recordCancellation(c metrics.Cancellation) {
	if rec, ok := m.metrics.(metrics.CancellationRecorder); ok {
		if err := rec.RecordCancellation(c); err != nil {
			m.log.Errorf("metrics error: %v", err)
		}
	}
}

// Trips lists the trips booked on a vehicle.
func (m *Manager) Trips(vehicleID string) ([]model.TripInterval, error) {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return nil, err
	}
	return st.Trips(), nil
}

// QueryAvailability reports whether the vehicle is Available and free for w.
func (m *Manager) QueryAvailability(vehicleID string, w model.Window) (bool, error) {
	if err := w.Validate(); err != nil {
		return false, err
	}
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return false, err
	}
	return st.IsAvailable(w), nil
}

// StatusReport describes a vehicle for status queries.
type StatusReport struct {
	VehicleID    string                  `json:"vehicle_id"`
	Model        string                  `json:"model,omitempty"`
	Class        model.VehicleClass      `json:"class"`
	Kind         model.VehicleKind       `json:"kind"`
	Capacity     int                     `json:"capacity"`
	CargoCapable bool                    `json:"cargo_capable"`
	Status       model.OperationalStatus `json:"status"`
	Maintenance  maintenance.Assessment  `json:"maintenance"`
	LastService  time.Time               `json:"last_service"`
	TripCount    int                     `json:"trip_count"`
	NextTrip     *model.TripInterval     `json:"next_trip,omitempty"`
	Tracking     bool                    `json:"tracking"`
	DistanceKm   float64                 `json:"distance_km"`
	Location     *fleet.Point            `json:"location,omitempty"`
	Driver       *fleet.Driver           `json:"driver,omitempty"`
}

func newStatusReport(r fleet.Report) StatusReport {
	v := r.Vehicle
	return StatusReport{
		VehicleID:    v.ID,
		Model:        v.Model,
		Class:        v.Class,
		Kind:         v.Kind,
		Capacity:     v.Capacity,
		CargoCapable: v.CanCarryCargo(),
		Status:       v.Status,
		Maintenance:  r.Maintenance,
		LastService:  v.LastService,
		TripCount:    r.TripCount,
		NextTrip:     r.NextTrip,
		Tracking:     r.Tracking,
		DistanceKm:   r.DistanceKm,
		Location:     r.Location,
		Driver:       r.Driver,
	}
}

// VehicleStatus returns the status report of one vehicle.
func (m *Manager) VehicleStatus(vehicleID string) (StatusReport, error) {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return StatusReport{}, err
	}
	return newStatusReport(st.Report(m.policy, m.now())), nil
}

// Vehicles returns the status of every vehicle in registration order.
func (m *Manager) Vehicles() []StatusReport {
	now := m.now()
	states := m.fleet.Vehicles()
	out := make([]StatusReport, 0, len(states))
	for _, st := range states {
		out = append(out, newStatusReport(st.Report(m.policy, now)))
	}
	return out
}

// Stats summarises the fleet over w.
func (m *Manager) Stats(w model.Window) (fleet.Stats, error) {
	if err := w.Validate(); err != nil {
		return fleet.Stats{}, err
	}
	return m.fleet.Stats(w, m.policy), nil
}

// SetOperationalStatus applies an administrative status transition.
func (m *Manager) SetOperationalStatus(vehicleID string, to model.OperationalStatus) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	from, err := st.SetStatus(to)
	if err != nil {
		return err
	}
	m.statusChanged(st, from, to, ReasonManual)
	return nil
}

func (m *Manager) statusChanged(st *fleet.VehicleState, from, to model.OperationalStatus, reason string) {
	if from == to {
		return
	}
	now := m.now()
	m.log.Infof("vehicle %s %s -> %s (%s)", st.ID(), from, to, reason)
	m.publish(events.StatusEvent{VehicleID: st.ID(), From: from, To: to, Reason: reason, Time: now})
	if rec, ok := m.metrics.(metrics.VehicleStatusRecorder); ok {
		if err := rec.RecordVehicleStatus(m.statusMetric(st, now)); err != nil {
			m.log.Errorf("metrics error: %v", err)
		}
	}
}

func (m *Manager) statusMetric(st *fleet.VehicleState, now time.Time) metrics.VehicleStatus {
	r := st.Report(m.policy, now)
	return metrics.VehicleStatus{
		VehicleID:        r.Vehicle.ID,
		Class:            r.Vehicle.Class.String(),
		Kind:             r.Vehicle.Kind.String(),
		Status:           r.Vehicle.Status.String(),
		NeedsService:     r.Maintenance.NeedsService,
		DaysSinceService: r.Maintenance.DaysSinceService,
		Trips:            r.TripCount,
		Time:             now,
	}
}

// PerformMaintenance records maintenance on a vehicle and resets its service
// date. An Available vehicle moves to InMaintenance; other states are kept.
func (m *Manager) PerformMaintenance(vehicleID string) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	if from, err := st.SetStatus(model.StatusInMaintenance); err == nil {
		m.statusChanged(st, from, model.StatusInMaintenance, ReasonMaintenance)
	}
	now := m.now()
	details := st.PerformMaintenance(now)
	m.publish(events.MaintenanceEvent{VehicleID: vehicleID, Details: details, Time: now})
	return nil
}

// CompleteMaintenance returns an InMaintenance vehicle to service.
func (m *Manager) CompleteMaintenance(vehicleID string) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	changed, err := st.CompleteMaintenance()
	if err != nil {
		return err
	}
	if changed {
		m.statusChanged(st, model.StatusInMaintenance, model.StatusAvailable, ReasonMaintenance)
	}
	return nil
}

// ScheduleService records a planned service date.
func (m *Manager) ScheduleService(vehicleID string, date time.Time) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	st.ScheduleService(date, m.now())
	return nil
}

// UpdateServiceRecord appends free-form details to the service history.
func (m *Manager) UpdateServiceRecord(vehicleID, details string) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	st.UpdateServiceRecord(details, m.now())
	return nil
}

// ServiceHistory returns the service records of a vehicle.
func (m *Manager) ServiceHistory(vehicleID string) ([]fleet.ServiceRecord, error) {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return nil, err
	}
	return st.ServiceHistory(), nil
}

// SweepMaintenance flags every Available vehicle the policy reports as
// overdue and returns their ids.
func (m *Manager) SweepMaintenance() []string {
	now := m.now()
	var flagged []string
	for _, st := range m.fleet.Vehicles() {
		if st.FlagIfOverdue(m.policy, now) {
			flagged = append(flagged, st.ID())
			m.statusChanged(st, model.StatusAvailable, model.StatusInMaintenance, ReasonSweep)
		}
	}
	return flagged
}

// SetTracking enables or disables distance accounting for a vehicle.
func (m *Manager) SetTracking(vehicleID string, on bool) error {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return err
	}
	if on {
		st.StartTracking()
	} else {
		st.StopTracking()
	}
	return nil
}

// UpdateLocation folds a location update into the vehicle odometer and
// returns the distance added.
func (m *Manager) UpdateLocation(vehicleID string, p fleet.Point) (float64, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("location %v out of range: %w", p, model.ErrInvalidRequest)
	}
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return 0, err
	}
	d := st.UpdateLocation(p)
	m.publish(events.LocationEvent{
		VehicleID:  vehicleID,
		Lat:        p.Lat,
		Lng:        p.Lng,
		DeltaKm:    d,
		DistanceKm: st.DistanceKm(),
		Time:       m.now(),
	})
	return d, nil
}

// AssignDriver replaces the driver of a vehicle. Out of service vehicles
// cannot take a driver.
func (m *Manager) AssignDriver(vehicleID string, opts DriverOptions) (fleet.Driver, error) {
	st, err := m.fleet.Get(vehicleID)
	if err != nil {
		return fleet.Driver{}, err
	}
	if st.Vehicle().Status == model.StatusOutOfService {
		return fleet.Driver{}, fmt.Errorf("vehicle %s is out of service: %w", vehicleID, model.ErrConflict)
	}
	d := opts.driver(m.now())
	st.AssignDriver(d)
	m.log.Infof("driver %q assigned to %s", d.Name, vehicleID)
	return d, nil
}

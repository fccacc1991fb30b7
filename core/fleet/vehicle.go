package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/calendar"
	"github.com/kilianp07/fleetdispatch/core/maintenance"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// ServiceRecord is one entry of a vehicle service history.
type ServiceRecord struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Details string    `json:"details"`
}

const (
	RecordMaintenance = "maintenance"
	RecordScheduled   = "scheduled"
	RecordNote        = "note"
)

// Driver is the driver currently assigned to a vehicle.
type Driver struct {
	Name                string         `json:"name,omitempty"`
	License             string         `json:"license,omitempty"`
	ShiftTime           string         `json:"shift_time,omitempty"`
	Priority            model.Priority `json:"priority"`
	SpecialRequirements []string       `json:"special_requirements,omitempty"`
	Emergency           bool           `json:"emergency"`
	AssignedAt          time.Time      `json:"assigned_at"`
}

// VehicleState is the mutable state of one registered vehicle. All methods
// are safe for concurrent use; calendar mutations on one vehicle are
// serialized by its lock and never block on I/O.
type VehicleState struct {
	mu        sync.Mutex
	vehicle   model.Vehicle
	cal       *calendar.Calendar
	maxPerDay int
	removed   bool

	history  []ServiceRecord
	tracking bool
	location Point
	located  bool
	distance float64
	driver   *Driver
}

func newVehicleState(v model.Vehicle, maxPerDay int, opts ...calendar.Option) *VehicleState {
	return &VehicleState{vehicle: v, cal: calendar.New(opts...), maxPerDay: maxPerDay}
}

// ID returns the immutable vehicle identifier.
func (s *VehicleState) ID() string { return s.vehicle.ID }

// Vehicle returns a copy of the current vehicle description.
func (s *VehicleState) Vehicle() model.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicle
}

// MeetsCapacity reports whether the vehicle seats at least n passengers.
func (s *VehicleState) MeetsCapacity(n int) bool {
	// Capacity never changes after registration.
	return s.vehicle.MeetsCapacity(n)
}

// IsAvailable is true iff the vehicle is Available and no scheduled trip
// overlaps w.
func (s *VehicleState) IsAvailable(w model.Window) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableLocked(w)
}

func (s *VehicleState) availableLocked(w model.Window) bool {
	return !s.removed && s.vehicle.Status == model.StatusAvailable && !s.cal.Overlapping(w)
}

// Check takes a consistent snapshot for candidate filtering: the vehicle
// description, whether it can take w, and whether the policy flags it.
func (s *VehicleState) Check(w model.Window, p maintenance.Policy, now time.Time) (v model.Vehicle, available, needsService bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicle, s.availableLocked(w), p.Assess(s.vehicle, now).NeedsService
}

// Assess evaluates the vehicle against the maintenance policy.
func (s *VehicleState) Assess(p maintenance.Policy, now time.Time) maintenance.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.Assess(s.vehicle, now)
}

// NeedsService reports whether the policy flags the vehicle as overdue.
func (s *VehicleState) NeedsService(p maintenance.Policy, now time.Time) bool {
	return s.Assess(p, now).NeedsService
}

// Book inserts the trip after re-validating availability under the vehicle
// lock. A vehicle that became unavailable, or a window claimed by a
// concurrent booking, fails closed with model.ErrConflict.
func (s *VehicleState) Book(t model.TripInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return fmt.Errorf("vehicle %s removed: %w", s.vehicle.ID, model.ErrNotFound)
	}
	if s.vehicle.Status != model.StatusAvailable {
		return fmt.Errorf("vehicle %s is %s: %w", s.vehicle.ID, s.vehicle.Status, model.ErrConflict)
	}
	if s.maxPerDay > 0 && s.cal.CountOn(t.Departure) >= s.maxPerDay {
		return fmt.Errorf("vehicle %s reached %d trips for the day: %w", s.vehicle.ID, s.maxPerDay, model.ErrConflict)
	}
	if err := s.cal.Insert(t); err != nil {
		return fmt.Errorf("vehicle %s: %w", s.vehicle.ID, err)
	}
	return nil
}

// Cancel removes a trip from the calendar.
func (s *VehicleState) Cancel(tripID string) (model.TripInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.cal.Cancel(tripID)
	if err != nil {
		return t, fmt.Errorf("vehicle %s: %w", s.vehicle.ID, err)
	}
	return t, nil
}

// Reschedule moves a trip to a new window atomically and returns the trip
// before and after the move. The daily cap applies when the trip changes day.
func (s *VehicleState) Reschedule(tripID string, w model.Window) (prev, updated model.TripInterval, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.cal.Get(tripID)
	if ok && s.maxPerDay > 0 && !sameDay(prev.Departure, w.Departure) && s.cal.CountOn(w.Departure) >= s.maxPerDay {
		return prev, prev, fmt.Errorf("vehicle %s reached %d trips for the day: %w", s.vehicle.ID, s.maxPerDay, model.ErrConflict)
	}
	updated, err = s.cal.Update(tripID, w)
	if err != nil {
		return prev, prev, fmt.Errorf("vehicle %s: %w", s.vehicle.ID, err)
	}
	return prev, updated, nil
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Trips returns the scheduled trips ordered by departure.
func (s *VehicleState) Trips() []model.TripInterval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal.List()
}

// TripCount returns the number of scheduled trips.
func (s *VehicleState) TripCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal.Count()
}

// NextTrip returns the earliest trip departing strictly after now.
func (s *VehicleState) NextTrip(now time.Time) (model.TripInterval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal.Next(now)
}

// SetStatus applies an operational status transition. Any state may move to
// OutOfService; Available and InMaintenance move to each other; OutOfService
// only returns to Available.
func (s *VehicleState) SetStatus(to model.OperationalStatus) (model.OperationalStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.vehicle.Status
	if !validTransition(from, to) {
		return from, fmt.Errorf("vehicle %s: %s -> %s: %w", s.vehicle.ID, from, to, model.ErrInvalidTransition)
	}
	s.vehicle.Status = to
	return from, nil
}

func validTransition(from, to model.OperationalStatus) bool {
	if from == to || to == model.StatusOutOfService {
		return true
	}
	switch from {
	case model.StatusAvailable:
		return to == model.StatusInMaintenance
	case model.StatusInMaintenance:
		return to == model.StatusAvailable
	case model.StatusOutOfService:
		return to == model.StatusAvailable
	}
	return false
}

// CompleteMaintenance returns an InMaintenance vehicle to Available. It is a
// no-op for an Available vehicle; an OutOfService vehicle stays out of
// service and the call fails with model.ErrInvalidTransition.
func (s *VehicleState) CompleteMaintenance() (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.vehicle.Status {
	case model.StatusInMaintenance:
		s.vehicle.Status = model.StatusAvailable
		return true, nil
	case model.StatusAvailable:
		return false, nil
	default:
		return false, fmt.Errorf("vehicle %s is %s: %w", s.vehicle.ID, s.vehicle.Status, model.ErrInvalidTransition)
	}
}

// FlagIfOverdue moves an Available vehicle to InMaintenance when the policy
// says it needs service. It returns true when the status changed.
func (s *VehicleState) FlagIfOverdue(p maintenance.Policy, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.vehicle.Status != model.StatusAvailable {
		return false
	}
	if !p.Assess(s.vehicle, now).NeedsService {
		return false
	}
	s.vehicle.Status = model.StatusInMaintenance
	return true
}

// PerformMaintenance resets the last service date and records it. The
// operational status is left for the caller to set. The record details are
// returned.
func (s *VehicleState) PerformMaintenance(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicle.LastService = now
	details := "maintenance performed"
	if s.vehicle.SpecialPurpose() {
		details = "enhanced maintenance performed"
	}
	s.history = append(s.history, ServiceRecord{Time: now, Kind: RecordMaintenance, Details: details})
	return details
}

// ScheduleService records a planned service date.
func (s *VehicleState) ScheduleService(date, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ServiceRecord{
		Time:    now,
		Kind:    RecordScheduled,
		Details: "service scheduled for " + date.Format(time.RFC3339),
	})
}

// UpdateServiceRecord appends free-form service details.
func (s *VehicleState) UpdateServiceRecord(details string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ServiceRecord{Time: now, Kind: RecordNote, Details: details})
}

// ServiceHistory returns a copy of the service records.
func (s *VehicleState) ServiceHistory() []ServiceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServiceRecord, len(s.history))
	copy(out, s.history)
	return out
}

// AssignDriver replaces the current driver assignment.
func (s *VehicleState) AssignDriver(d Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driver = &d
}

// Driver returns the current driver, if any.
func (s *VehicleState) Driver() (Driver, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return Driver{}, false
	}
	return *s.driver, true
}

// Report is a consistent snapshot of a vehicle for status queries.
type Report struct {
	Vehicle     model.Vehicle
	Maintenance maintenance.Assessment
	TripCount   int
	NextTrip    *model.TripInterval
	Tracking    bool
	DistanceKm  float64
	Location    *Point
	Driver      *Driver
}

// Report builds a snapshot under a single lock acquisition.
func (s *VehicleState) Report(p maintenance.Policy, now time.Time) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Report{
		Vehicle:     s.vehicle,
		Maintenance: p.Assess(s.vehicle, now),
		TripCount:   s.cal.Count(),
		Tracking:    s.tracking,
		DistanceKm:  s.distance,
	}
	if next, ok := s.cal.Next(now); ok {
		r.NextTrip = &next
	}
	if s.located {
		loc := s.location
		r.Location = &loc
	}
	if s.driver != nil {
		d := *s.driver
		r.Driver = &d
	}
	return r
}

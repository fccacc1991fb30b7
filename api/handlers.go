package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/journal"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// DispatchRequest is the body of POST /api/dispatch. Arrival may be omitted
// when RouteID is set.
type DispatchRequest struct {
	RequesterID   string    `json:"requester_id" validate:"max=128"`
	RouteID       string    `json:"route_id" validate:"max=128"`
	Destination   string    `json:"destination"`
	Departure     time.Time `json:"departure"`
	Arrival       time.Time `json:"arrival"`
	Capacity      int       `json:"capacity" validate:"gte=0"`
	Priority      string    `json:"priority" validate:"omitempty,oneof=unknown staff lecturer subscribed_student unsubscribed_student student"`
	Emergency     bool      `json:"emergency"`
	EmergencyType string    `json:"emergency_type" validate:"max=64"`
}

func (d DispatchRequest) request() (model.Request, error) {
	p, err := model.ParsePriority(d.Priority)
	if err != nil {
		return model.Request{}, err
	}
	return model.Request{
		RequesterID:   d.RequesterID,
		RouteID:       d.RouteID,
		Destination:   d.Destination,
		Window:        model.Window{Departure: d.Departure, Arrival: d.Arrival},
		Capacity:      d.Capacity,
		Priority:      p,
		Emergency:     d.Emergency,
		EmergencyType: d.EmergencyType,
	}, nil
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var body DispatchRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	req, err := body.request()
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.mgr.Dispatch(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Assigned() {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Vehicles())
}

func (s *Server) handleRegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var body fleet.VehicleConfig
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	v, err := body.Vehicle()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.mgr.RegisterVehicle(v); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, http.StatusCreated, v.ID)
}

func (s *Server) handleRemoveVehicle(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.RemoveVehicle(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStatus(w http.ResponseWriter, code int, id string) {
	rep, err := s.mgr.VehicleStatus(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, code, rep)
}

func (s *Server) handleVehicleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, http.StatusOK, chi.URLParam(r, "id"))
}

// Availability is the body of GET /api/vehicles/{id}/availability.
type Availability struct {
	VehicleID string       `json:"vehicle_id"`
	Window    model.Window `json:"window"`
	Available bool         `json:"available"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	win, err := queryWindow(r, "departure", "arrival", nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	ok, err := s.mgr.QueryAvailability(id, win)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Availability{VehicleID: id, Window: win, Available: ok})
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.mgr.Trips(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

func (s *Server) handleCancelTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.CancelTrip(chi.URLParam(r, "id"), chi.URLParam(r, "tripID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RescheduleRequest is the body of PUT /api/vehicles/{id}/trips/{tripID}.
type RescheduleRequest struct {
	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
}

func (s *Server) handleRescheduleTrip(w http.ResponseWriter, r *http.Request) {
	var body RescheduleRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	win, err := model.NewWindow(body.Departure, body.Arrival)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.mgr.RescheduleTrip(id, chi.URLParam(r, "tripID"), win); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleTrips(w, r)
}

// MaintenanceRequest is the body of POST /api/vehicles/{id}/maintenance.
// Date is required by "schedule", Details by "record".
type MaintenanceRequest struct {
	Action  string    `json:"action" validate:"required,oneof=perform complete schedule record"`
	Date    time.Time `json:"date"`
	Details string    `json:"details" validate:"required_if=Action record"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var body MaintenanceRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	var err error
	switch body.Action {
	case "perform":
		err = s.mgr.PerformMaintenance(id)
	case "complete":
		err = s.mgr.CompleteMaintenance(id)
	case "schedule":
		if body.Date.IsZero() {
			err = fmt.Errorf("date is required to schedule a service: %w", model.ErrInvalidRequest)
			break
		}
		err = s.mgr.ScheduleService(id, body.Date)
	case "record":
		err = s.mgr.UpdateServiceRecord(id, body.Details)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, http.StatusOK, id)
}

// StatusRequest is the body of POST /api/vehicles/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available in_maintenance out_of_service"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body StatusRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	to, err := model.ParseOperationalStatus(body.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.mgr.SetOperationalStatus(id, to); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, http.StatusOK, id)
}

func (s *Server) handleAssignDriver(w http.ResponseWriter, r *http.Request) {
	var body dispatch.DriverOptions
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.mgr.AssignDriver(chi.URLParam(r, "id"), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// LocationRequest is the body of POST /api/vehicles/{id}/location.
type LocationRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// LocationResponse reports the distance added by a location update.
type LocationResponse struct {
	VehicleID string  `json:"vehicle_id"`
	DeltaKm   float64 `json:"delta_km"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var body LocationRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	d, err := s.mgr.UpdateLocation(id, fleet.Point{Lat: body.Lat, Lng: body.Lng})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LocationResponse{VehicleID: id, DeltaKm: d})
}

// TrackingRequest is the body of POST /api/vehicles/{id}/tracking.
type TrackingRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	var body TrackingRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.mgr.SetTracking(id, body.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, http.StatusOK, id)
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []journal.Entry{})
		return
	}
	q := r.URL.Query()
	f := journal.Filter{
		VehicleID:   q.Get("vehicle_id"),
		RequesterID: q.Get("requester_id"),
		RouteID:     q.Get("route_id"),
	}
	var err error
	if f.EmergencyOnly, err = queryBool(q.Get("emergency")); err != nil {
		s.writeError(w, err)
		return
	}
	if f.IncludeCancelled, err = queryBool(q.Get("include_cancelled")); err != nil {
		s.writeError(w, err)
		return
	}
	entries := s.journal.List(f)
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// FleetStats is the body of GET /api/fleet/stats. Rejections counts the
// journaled dispatches that ended without a vehicle.
type FleetStats struct {
	fleet.Stats
	Rejections    int    `json:"rejections"`
	DroppedEvents uint64 `json:"dropped_events"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	win, err := queryWindow(r, "from", "to", &model.Window{Departure: day, Arrival: day.AddDate(0, 0, 1)})
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.mgr.Stats(win)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := FleetStats{Stats: st}
	if s.journal != nil {
		out.Rejections = s.journal.Rejections()
	}
	if s.bus != nil {
		out.DroppedEvents = s.bus.Dropped()
	}
	writeJSON(w, http.StatusOK, out)
}

// queryWindow parses two RFC 3339 query parameters. def is used when both are
// absent; without a default both are required.
func queryWindow(r *http.Request, from, to string, def *model.Window) (model.Window, error) {
	q := r.URL.Query()
	if q.Get(from) == "" && q.Get(to) == "" && def != nil {
		return *def, nil
	}
	dep, err := time.Parse(time.RFC3339, q.Get(from))
	if err != nil {
		return model.Window{}, fmt.Errorf("%s: %v: %w", from, err, model.ErrInvalidWindow)
	}
	arr, err := time.Parse(time.RFC3339, q.Get(to))
	if err != nil {
		return model.Window{}, fmt.Errorf("%s: %v: %w", to, err, model.ErrInvalidWindow)
	}
	return model.NewWindow(dep, arr)
}

func queryBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean: %w", v, model.ErrInvalidRequest)
	}
	return b, nil
}

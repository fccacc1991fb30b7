package fleet

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fleetdispatch/core/maintenance"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Stats summarises the fleet over a reporting window.
type Stats struct {
	Vehicles        int            `json:"vehicles"`
	ByStatus        map[string]int `json:"by_status"`
	ByClass         map[string]int `json:"by_class"`
	NeedsService    int            `json:"needs_service"`
	Trips           int            `json:"trips"`
	MeanUtilization float64        `json:"mean_utilization"`
	StdUtilization  float64        `json:"std_utilization"`
	MaxUtilization  float64        `json:"max_utilization"`
	SeatsAvailable  int            `json:"seats_available"`
}

// Stats computes per-status counts and the share of w booked on each vehicle.
// Utilization is the booked fraction of w; mean and standard deviation are
// taken across vehicles.
func (r *Registry) Stats(w model.Window, p maintenance.Policy) Stats {
	out := Stats{ByStatus: map[string]int{}, ByClass: map[string]int{}}
	var util []float64
	span := w.Duration()
	r.Scan(func(_ int, s *VehicleState) bool {
		s.mu.Lock()
		v := s.vehicle
		booked := s.cal.Booked(w)
		trips := s.cal.Count()
		overdue := p.Assess(v, w.Departure).NeedsService
		s.mu.Unlock()

		out.Vehicles++
		out.ByStatus[v.Status.String()]++
		out.ByClass[v.Class.String()]++
		out.Trips += trips
		if overdue {
			out.NeedsService++
		}
		if v.Status == model.StatusAvailable {
			out.SeatsAvailable += v.Capacity
		}
		if span > 0 {
			util = append(util, float64(booked)/float64(span))
		}
		return true
	})
	switch len(util) {
	case 0:
	case 1:
		out.MeanUtilization = util[0]
		out.MaxUtilization = util[0]
	default:
		out.MeanUtilization, out.StdUtilization = stat.MeanStdDev(util, nil)
		out.MaxUtilization = floats.Max(util)
	}
	return out
}

package dispatch

import (
	"sort"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Candidate is a vehicle that passed the capacity and availability filters.
type Candidate struct {
	State   *fleet.VehicleState
	Vehicle model.Vehicle
	// Index is the registration position, the final tie-break.
	Index int
}

// Selector orders candidates in place; the first one is booked first.
type Selector interface {
	Name() string
	Order(c []Candidate)
}

// SmallestFitSelector prefers the smallest sufficient capacity, then standard
// vehicles over special-purpose ones, then registration order.
type SmallestFitSelector struct{}

func (SmallestFitSelector) Name() string { return "smallest_fit" }

func (SmallestFitSelector) Order(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i].Vehicle, c[j].Vehicle
		if a.Capacity != b.Capacity {
			return a.Capacity < b.Capacity
		}
		if a.SpecialPurpose() != b.SpecialPurpose() {
			return !a.SpecialPurpose()
		}
		return c[i].Index < c[j].Index
	})
}

// EmergencySelector puts special-purpose vehicles first and keeps
// registration order within each group. Capacity fit is not optimized.
type EmergencySelector struct{}

func (EmergencySelector) Name() string { return "emergency" }

func (EmergencySelector) Order(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i].Vehicle, c[j].Vehicle
		if a.SpecialPurpose() != b.SpecialPurpose() {
			return a.SpecialPurpose()
		}
		return c[i].Index < c[j].Index
	})
}

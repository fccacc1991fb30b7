package dispatch

import (
	"sort"
	"time"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// DriverOptions carries the recognized driver assignment options. Only Name
// and License identify a specific driver; when Name is empty an automatic
// assignment is recorded.
type DriverOptions struct {
	Name                string          `json:"name,omitempty"`
	License             string          `json:"license,omitempty"`
	ShiftTime           *string         `json:"shift_time,omitempty"`
	Priority            *model.Priority `json:"priority,omitempty"`
	SpecialRequirements []string        `json:"special_requirements,omitempty"`
	Emergency           bool            `json:"emergency,omitempty"`
}

const (
	autoDriverName      = "auto-assigned driver"
	emergencyDriverName = "emergency driver"
)

func (o DriverOptions) driver(now time.Time) fleet.Driver {
	d := fleet.Driver{
		Name:       o.Name,
		License:    o.License,
		Emergency:  o.Emergency,
		AssignedAt: now,
	}
	if d.Name == "" {
		d.Name = autoDriverName
		if o.Emergency {
			d.Name = emergencyDriverName
		}
	}
	if o.ShiftTime != nil {
		d.ShiftTime = *o.ShiftTime
	}
	if o.Priority != nil {
		d.Priority = *o.Priority
	}
	// special requirements are a set
	if len(o.SpecialRequirements) > 0 {
		seen := make(map[string]struct{}, len(o.SpecialRequirements))
		for _, r := range o.SpecialRequirements {
			if _, ok := seen[r]; ok || r == "" {
				continue
			}
			seen[r] = struct{}{}
			d.SpecialRequirements = append(d.SpecialRequirements, r)
		}
		sort.Strings(d.SpecialRequirements)
	}
	return d
}

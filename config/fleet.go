package config

import (
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/directory"
	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// FleetConfig seeds the fleet, routes and requesters at startup.
type FleetConfig struct {
	Vehicles []fleet.VehicleConfig   `json:"vehicles"`
	Routes   []directory.RouteConfig `json:"routes"`
	Users    []directory.UserConfig  `json:"users"`
	// JournalSize bounds the assignment journal.
	JournalSize int `json:"journal_size"`
}

// SetDefaults applies sane defaults.
func (c *FleetConfig) SetDefaults() {
	if c.JournalSize == 0 {
		c.JournalSize = 10000
	}
}

// Directory returns the route and user part of the section.
func (c FleetConfig) Directory() directory.Config {
	return directory.Config{Routes: c.Routes, Users: c.Users}
}

// Models converts the seed vehicles.
func (c FleetConfig) Models() ([]model.Vehicle, error) {
	out := make([]model.Vehicle, 0, len(c.Vehicles))
	seen := make(map[string]bool, len(c.Vehicles))
	for _, vc := range c.Vehicles {
		v, err := vc.Vehicle()
		if err != nil {
			return nil, err
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("duplicate vehicle %s: %w", v.ID, model.ErrConflict)
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out, nil
}

// Validate checks vehicles, routes and users.
func (c FleetConfig) Validate() error {
	if c.JournalSize < 0 {
		return fmt.Errorf("journal_size must not be negative")
	}
	if _, err := c.Models(); err != nil {
		return err
	}
	return c.Directory().Validate()
}

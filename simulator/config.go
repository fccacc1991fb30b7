// Package simulator drives fake vehicles around a campus loop and publishes
// their positions on the location topic consumed by the service.
package simulator

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/fleet"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker      string
	TopicPrefix string
	Interval    time.Duration
	// Steps is the number of reports between two waypoints.
	Steps int
	// Jitter is the maximum random offset in degrees added to each report.
	Jitter float64
	Loop   []fleet.Point
}

// DefaultLoop is a small circuit used when no waypoints are configured.
var DefaultLoop = []fleet.Point{
	{Lat: 48.7109, Lng: 2.1710},
	{Lat: 48.7135, Lng: 2.1795},
	{Lat: 48.7090, Lng: 2.1850},
	{Lat: 48.7062, Lng: 2.1760},
}

// SetDefaults fills the interval, step count and loop.
func (c *Config) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Steps <= 0 {
		c.Steps = 10
	}
	if len(c.Loop) == 0 {
		c.Loop = DefaultLoop
	}
}

// Validate checks the broker and waypoints.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("simulator broker is required")
	}
	if len(c.Loop) < 2 {
		return fmt.Errorf("simulator loop needs at least two waypoints")
	}
	for i, p := range c.Loop {
		if !p.Valid() {
			return fmt.Errorf("simulator waypoint %d out of range", i)
		}
	}
	if c.Jitter < 0 {
		return fmt.Errorf("simulator jitter must be >= 0")
	}
	return nil
}

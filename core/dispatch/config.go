package dispatch

import (
	"fmt"
	"time"
)

// Config defines dispatch-related settings.
type Config struct {
	// MinTurnaroundMinutes is the free time kept between consecutive trips
	// of a vehicle.
	MinTurnaroundMinutes int `json:"min_turnaround_minutes"`
	// MaxTripsPerDay caps trips departing on one day per vehicle; 0 disables.
	MaxTripsPerDay int `json:"max_trips_per_day"`
	// EventBuffer is the subscriber buffer of the domain event bus.
	EventBuffer int `json:"event_buffer"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.EventBuffer == 0 {
		c.EventBuffer = 64
	}
}

// Validate rejects negative settings.
func (c Config) Validate() error {
	if c.MinTurnaroundMinutes < 0 {
		return fmt.Errorf("dispatch: min_turnaround_minutes must not be negative")
	}
	if c.MaxTripsPerDay < 0 {
		return fmt.Errorf("dispatch: max_trips_per_day must not be negative")
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("dispatch: event_buffer must not be negative")
	}
	return nil
}

// Turnaround returns the configured buffer between trips.
func (c Config) Turnaround() time.Duration {
	return time.Duration(c.MinTurnaroundMinutes) * time.Minute
}

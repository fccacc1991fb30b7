// Package maintenance derives the service state of a vehicle from the time
// elapsed since its last service.
package maintenance

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Status is the maintenance status derived by the policy.
type Status int

const (
	StatusGood Status = iota
	StatusNeedsMaintenance
)

func (s Status) String() string {
	if s == StatusNeedsMaintenance {
		return "maintenance_required"
	}
	return "good_condition"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Config holds the service intervals in days. Zero values fall back to the
// defaults applied by SetDefaults.
type Config struct {
	HeavyIntervalDays   int  `json:"heavy_interval_days"`
	LightIntervalDays   int  `json:"light_interval_days"`
	SpecialIntervalDays int  `json:"special_interval_days"`
	AutoFlag            bool `json:"auto_flag"`
	SweepSeconds        int  `json:"sweep_seconds"`
}

// SetDefaults applies the standard fleet intervals.
func (c *Config) SetDefaults() {
	if c.HeavyIntervalDays == 0 {
		c.HeavyIntervalDays = 30
	}
	if c.LightIntervalDays == 0 {
		c.LightIntervalDays = 25
	}
	if c.SpecialIntervalDays == 0 {
		c.SpecialIntervalDays = 20
	}
	if c.SweepSeconds == 0 {
		c.SweepSeconds = 3600
	}
}

// Validate checks that intervals are positive.
func (c Config) Validate() error {
	if c.HeavyIntervalDays <= 0 || c.LightIntervalDays <= 0 || c.SpecialIntervalDays <= 0 {
		return fmt.Errorf("maintenance intervals must be positive")
	}
	if c.SweepSeconds < 0 {
		return fmt.Errorf("sweep_seconds must not be negative")
	}
	return nil
}

// SweepInterval returns the period of the auto-flag sweep.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

// Assessment is the outcome of evaluating a vehicle against the policy.
type Assessment struct {
	DaysSinceService int    `json:"days_since_service"`
	ThresholdDays    int    `json:"threshold_days"`
	NeedsService     bool   `json:"needs_service"`
	Status           Status `json:"status"`
}

// Policy maps a vehicle class and kind to a service interval.
type Policy struct {
	cfg Config
}

// NewPolicy returns a policy using cfg with defaults applied.
func NewPolicy(cfg Config) Policy {
	cfg.SetDefaults()
	return Policy{cfg: cfg}
}

// DefaultPolicy returns the policy with the standard intervals.
func DefaultPolicy() Policy { return NewPolicy(Config{}) }

// Config returns the effective configuration.
func (p Policy) Config() Config { return p.cfg }

// Threshold returns the service interval in days for the class and kind.
// Special-purpose vehicles use the special interval regardless of kind.
func (p Policy) Threshold(class model.VehicleClass, kind model.VehicleKind) int {
	if class == model.ClassSpecialPurpose {
		return p.cfg.SpecialIntervalDays
	}
	if kind.Heavy() {
		return p.cfg.HeavyIntervalDays
	}
	return p.cfg.LightIntervalDays
}

// Evaluate is the pure policy function: a vehicle needs service once the
// elapsed days strictly exceed the threshold.
func (p Policy) Evaluate(class model.VehicleClass, kind model.VehicleKind, days int) Assessment {
	th := p.Threshold(class, kind)
	a := Assessment{DaysSinceService: days, ThresholdDays: th}
	if days > th {
		a.NeedsService = true
		a.Status = StatusNeedsMaintenance
	}
	return a
}

// Assess evaluates v at the given instant.
func (p Policy) Assess(v model.Vehicle, now time.Time) Assessment {
	return p.Evaluate(v.Class, v.Kind, DaysSince(v.LastService, now))
}

// DaysSince returns the number of whole days between last and now. The
// distance is absolute so a clock skew never produces a negative count.
func DaysSince(last, now time.Time) int {
	d := now.Sub(last)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

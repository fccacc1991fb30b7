package directory

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// RouteConfig describes a route seeded from configuration.
type RouteConfig struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Stops             []string `json:"stops"`
	DistanceKm        float64  `json:"distance_km"`
	TravelTimeMinutes int      `json:"travel_time_minutes"`
	MinCapacity       int      `json:"min_capacity"`
	// Inactive routes reject dispatches; routes are active unless set.
	Inactive bool `json:"inactive"`
}

// Route converts the configuration entry.
func (c RouteConfig) Route() model.Route {
	return model.Route{
		ID:          c.ID,
		Name:        c.Name,
		Type:        c.Type,
		Stops:       c.Stops,
		DistanceKm:  c.DistanceKm,
		TravelTime:  time.Duration(c.TravelTimeMinutes) * time.Minute,
		Active:      !c.Inactive,
		MinCapacity: c.MinCapacity,
	}
}

// UserConfig maps a requester id to its role, e.g. "staff" or
// "subscribed_student".
type UserConfig struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Config seeds the directory.
type Config struct {
	Routes []RouteConfig `json:"routes"`
	Users  []UserConfig  `json:"users"`
}

// Validate checks ids and roles.
func (c Config) Validate() error {
	seen := map[string]bool{}
	for _, r := range c.Routes {
		if r.ID == "" {
			return fmt.Errorf("route id is required")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate route %q", r.ID)
		}
		seen[r.ID] = true
		if r.TravelTimeMinutes < 0 || r.MinCapacity < 0 {
			return fmt.Errorf("route %q: negative travel time or capacity", r.ID)
		}
	}
	for _, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("user id is required")
		}
		if _, err := model.ParsePriority(u.Role); err != nil {
			return fmt.Errorf("user %q: %w", u.ID, err)
		}
	}
	return nil
}

// Load adds the configured routes and users to the directory.
func (d *Directory) Load(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, rc := range c.Routes {
		if err := d.UpsertRoute(rc.Route()); err != nil {
			return err
		}
	}
	for _, u := range c.Users {
		p, _ := model.ParsePriority(u.Role)
		d.SetUser(u.ID, p)
	}
	return nil
}

package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/logger"
	coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"
)

// LocationPublisher sends one location report.
type LocationPublisher interface {
	PublishLocation(vehicleID string, loc coremqtt.Location) error
}

// SimulatedVehicle walks the loop one step per report.
type SimulatedVehicle struct {
	ID     string
	loop   []fleet.Point
	steps  int
	jitter float64
	rng    *rand.Rand
	pos    int
}

// Next returns the next position and advances the vehicle.
func (v *SimulatedVehicle) Next() fleet.Point {
	leg := (v.pos / v.steps) % len(v.loop)
	from, to := v.loop[leg], v.loop[(leg+1)%len(v.loop)]
	frac := float64(v.pos%v.steps) / float64(v.steps)
	v.pos++
	p := fleet.Point{
		Lat: from.Lat + (to.Lat-from.Lat)*frac,
		Lng: from.Lng + (to.Lng-from.Lng)*frac,
	}
	if v.jitter > 0 {
		p.Lat += (v.rng.Float64()*2 - 1) * v.jitter
		p.Lng += (v.rng.Float64()*2 - 1) * v.jitter
	}
	return p
}

// Run publishes a report every interval until ctx is done. Publish errors
// are logged and the vehicle keeps moving.
func (v *SimulatedVehicle) Run(ctx context.Context, pub LocationPublisher, every time.Duration, log logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		p := v.Next()
		if err := pub.PublishLocation(v.ID, coremqtt.Location{Lat: p.Lat, Lng: p.Lng}); err != nil {
			log.Warnf("%s: %v", v.ID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package simulator

import (
	"context"
	"math/rand"
	"sync"

	"github.com/kilianp07/fleetdispatch/core/logger"
)

// GenerateFleet places one vehicle per id on the loop, spread evenly so
// they do not report the same positions.
func GenerateFleet(cfg Config, ids []string, rng *rand.Rand) []*SimulatedVehicle {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	total := len(cfg.Loop) * cfg.Steps
	vs := make([]*SimulatedVehicle, 0, len(ids))
	for i, id := range ids {
		vs = append(vs, &SimulatedVehicle{
			ID:     id,
			loop:   cfg.Loop,
			steps:  cfg.Steps,
			jitter: cfg.Jitter,
			rng:    rand.New(rand.NewSource(rng.Int63())),
			pos:    i * total / len(ids),
		})
	}
	return vs
}

// Run drives every vehicle until ctx is done.
func Run(ctx context.Context, cfg Config, vehicles []*SimulatedVehicle, pub LocationPublisher, log logger.Logger) {
	if log == nil {
		log = logger.Nop{}
	}
	var wg sync.WaitGroup
	for _, v := range vehicles {
		wg.Add(1)
		go func(v *SimulatedVehicle) {
			defer wg.Done()
			v.Run(ctx, pub, cfg.Interval, log)
		}(v)
	}
	wg.Wait()
}

package mqtt

import (
	"context"

	"github.com/kilianp07/fleetdispatch/core/fleet"
	"github.com/kilianp07/fleetdispatch/core/logger"
	coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// LocationUpdater accepts vehicle positions. dispatch.Manager implements it.
type LocationUpdater interface {
	UpdateLocation(vehicleID string, p fleet.Point) (float64, error)
}

// Forward publishes the events of src until ctx is done. Publish failures are
// logged; events are not redelivered.
func Forward(ctx context.Context, src eventbus.Source[eventbus.Event], pub Publisher, log logger.Logger) <-chan struct{} {
	return eventbus.Listen(ctx, src, func(ev eventbus.Event) {
		if err := pub.PublishEvent(ev); err != nil {
			log.Errorf("forward event: %v", err)
		}
	})
}

// LocationSubscriber is the subscribing half of PahoClient.
type LocationSubscriber interface {
	SubscribeLocations(h coremqtt.LocationHandler) error
}

// FeedLocations routes the location reports received on sub to u.
func FeedLocations(sub LocationSubscriber, u LocationUpdater, log logger.Logger) error {
	return sub.SubscribeLocations(func(vehicleID string, loc coremqtt.Location) {
		if _, err := u.UpdateLocation(vehicleID, fleet.Point{Lat: loc.Lat, Lng: loc.Lng}); err != nil {
			log.Warnf("location of %s rejected: %v", vehicleID, err)
		}
	})
}

package mqtt

// Publisher sends fleet events to vehicles and downstream consumers over
// MQTT.
type Publisher interface {
	// PublishEvent encodes ev and publishes it on the topic derived from its
	// type. Event types without a topic are ignored.
	PublishEvent(ev any) error
}

// Location is the payload of a vehicle location report.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationHandler receives the location reports of a vehicle.
type LocationHandler func(vehicleID string, loc Location)

package simulator

import (
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"
)

// MQTTPublisher publishes reports on <prefix>/vehicles/<id>/location.
type MQTTPublisher struct {
	client paho.Client
	prefix string
}

// NewMQTTPublisher connects to broker.
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTPublisher{client: cli, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (p *MQTTPublisher) Topic(vehicleID string) string {
	return fmt.Sprintf("%s/vehicles/%s/location", p.prefix, vehicleID)
}

func (p *MQTTPublisher) PublishLocation(vehicleID string, loc coremqtt.Location) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.Topic(vehicleID), 0, false, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() { p.client.Disconnect(250) }

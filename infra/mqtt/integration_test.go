package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/fleetdispatch/core/events"
	coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"
)

func startMosquitto(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// TestIntegration publishes an assignment and feeds a location report
// through a real Mosquitto broker.
func TestIntegration(t *testing.T) {
	broker := startMosquitto(t)

	var cli *PahoClient
	var err error
	for i := 0; i < 5; i++ {
		cli, err = NewPahoClient(Config{Broker: broker, ClientID: "fleetdispatch-it", QoS: map[string]byte{"assignment": 1, "location": 1}})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err)
	defer cli.Disconnect()

	locations := make(chan coremqtt.Location, 1)
	require.NoError(t, cli.SubscribeLocations(func(id string, loc coremqtt.Location) {
		if id == "bus-1" {
			locations <- loc
		}
	}))

	vehicle := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("vehicle-bus-1"))
	tok := vehicle.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	defer vehicle.Disconnect(250)

	assignments := make(chan []byte, 1)
	tok = vehicle.Subscribe("fleetdispatch/assignments/bus-1", 1, func(_ paho.Client, m paho.Message) {
		assignments <- m.Payload()
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	require.NoError(t, cli.PublishEvent(events.AssignmentEvent{TripID: "t1", VehicleID: "bus-1", Capacity: 10}))
	select {
	case payload := <-assignments:
		var got events.AssignmentEvent
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "t1", got.TripID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for assignment")
	}

	tok = vehicle.Publish("fleetdispatch/vehicles/bus-1/location", 1, false, `{"lat":45.0,"lng":5.0}`)
	require.True(t, tok.WaitTimeout(5*time.Second))
	select {
	case loc := <-locations:
		assert.Equal(t, coremqtt.Location{Lat: 45, Lng: 5}, loc)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for location")
	}
}

package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

func capacities(m map[string]int) CapacityLookup {
	return func(id string) (int, error) {
		c, ok := m[id]
		if !ok {
			return 0, fmt.Errorf("vehicle %s: %w", id, model.ErrNotFound)
		}
		return c, nil
	}
}

func TestDirectory_Routes(t *testing.T) {
	d := New()
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r2", Active: true}))
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r1", Stops: []string{"campus", "station"}}))
	assert.True(t, errors.Is(d.UpsertRoute(model.Route{}), model.ErrInvalidRoute))
	assert.True(t, errors.Is(d.UpsertRoute(model.Route{ID: "x", MinCapacity: -1}), model.ErrInvalidRoute))

	r, err := d.GetRoute("r1")
	require.NoError(t, err)
	r.Stops[0] = "mutated"
	again, _ := d.GetRoute("r1")
	assert.Equal(t, "campus", again.Start())

	_, err = d.GetRoute("nope")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	routes := d.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "r1", routes[0].ID)

	require.NoError(t, d.SetRouteActive("r1", true))
	r, _ = d.GetRoute("r1")
	assert.True(t, r.Active)
	assert.True(t, errors.Is(d.SetRouteActive("nope", true), model.ErrNotFound))
}

func TestDirectory_CapacityCeiling(t *testing.T) {
	d := New(WithCapacityLookup(capacities(map[string]int{"bus": 40, "van": 12})))
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r", Active: true}))

	require.NoError(t, d.AssignVehicle("r", "bus"))
	require.NoError(t, d.AssignVehicle("r", "van"))
	require.NoError(t, d.AssignVehicle("r", "bus"))
	require.NoError(t, d.AssignVehicle("r", "gone"))

	r, err := d.GetRoute("r")
	require.NoError(t, err)
	assert.Equal(t, []string{"bus", "van", "gone"}, r.Assigned)
	assert.Equal(t, 52, r.CapacityCeiling)

	// replacing the route definition keeps its assignments
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r", Name: "Loop", Active: true}))
	r, _ = d.GetRoute("r")
	assert.Equal(t, "Loop", r.Name)
	assert.Equal(t, 52, r.CapacityCeiling)

	assert.True(t, errors.Is(d.AssignVehicle("nope", "bus"), model.ErrNotFound))
}

func TestDirectory_UnassignVehicle(t *testing.T) {
	d := New(WithCapacityLookup(capacities(map[string]int{"bus": 40, "van": 12})))
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r", Active: true}))
	require.NoError(t, d.AssignVehicle("r", "bus"))
	require.NoError(t, d.AssignVehicle("r", "van"))

	require.NoError(t, d.UnassignVehicle("r", "bus"))
	require.NoError(t, d.UnassignVehicle("r", "bus"))
	r, _ := d.GetRoute("r")
	assert.Equal(t, []string{"van"}, r.Assigned)
	assert.Equal(t, 12, r.CapacityCeiling)
	assert.True(t, r.CanAccommodate(12))
	assert.False(t, r.CanAccommodate(13))

	assert.True(t, errors.Is(d.UnassignVehicle("nope", "van"), model.ErrNotFound))
}

func TestDirectory_TripsHoldAssignments(t *testing.T) {
	d := New(WithCapacityLookup(capacities(map[string]int{"bus": 40, "van": 12})))
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r", Active: true}))
	require.NoError(t, d.UpsertRoute(model.Route{ID: "s", Active: true}))

	require.NoError(t, d.BookTrip("r", "bus", "t1"))
	require.NoError(t, d.BookTrip("r", "bus", "t2"))
	require.NoError(t, d.BookTrip("r", "van", "t3"))
	require.NoError(t, d.BookTrip("s", "van", "t4"))

	require.NoError(t, d.ReleaseTrip("r", "bus", "t1"))
	r, _ := d.GetRoute("r")
	assert.Equal(t, 52, r.CapacityCeiling, "bus still holds t2")

	require.NoError(t, d.ReleaseTrip("r", "bus", "t2"))
	r, _ = d.GetRoute("r")
	assert.Equal(t, []string{"van"}, r.Assigned)
	assert.Equal(t, 12, r.CapacityCeiling)

	d.ReleaseVehicle("van")
	r, _ = d.GetRoute("r")
	s, _ := d.GetRoute("s")
	assert.Empty(t, r.Assigned)
	assert.Zero(t, r.CapacityCeiling)
	assert.Empty(t, s.Assigned)

	assert.True(t, errors.Is(d.BookTrip("nope", "bus", "t5"), model.ErrNotFound))
	assert.True(t, errors.Is(d.ReleaseTrip("nope", "bus", "t5"), model.ErrNotFound))
}

func TestDirectory_Users(t *testing.T) {
	d := New()
	d.SetUser("alice", model.PriorityStaff)
	p, err := d.GetPriority("alice")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityStaff, p)
	p, err = d.GetPriority("bob")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Equal(t, model.PriorityUnknown, p)
}

func TestDirectory_Load(t *testing.T) {
	d := New()
	err := d.Load(Config{
		Routes: []RouteConfig{
			{ID: "r1", TravelTimeMinutes: 30, MinCapacity: 10},
			{ID: "r2", Inactive: true},
		},
		Users: []UserConfig{{ID: "alice", Role: "lecturer"}, {ID: "bob", Role: "student"}},
	})
	require.NoError(t, err)

	r, err := d.GetRoute("r1")
	require.NoError(t, err)
	assert.True(t, r.Active)
	assert.Equal(t, 30*time.Minute, r.TravelTime)
	r, _ = d.GetRoute("r2")
	assert.False(t, r.Active)

	p, _ := d.GetPriority("bob")
	assert.Equal(t, model.PriorityUnsubscribedStudent, p)
}

func TestConfig_Validate(t *testing.T) {
	cases := []Config{
		{Routes: []RouteConfig{{}}},
		{Routes: []RouteConfig{{ID: "a"}, {ID: "a"}}},
		{Routes: []RouteConfig{{ID: "a", TravelTimeMinutes: -1}}},
		{Users: []UserConfig{{Role: "staff"}}},
		{Users: []UserConfig{{ID: "u", Role: "admin"}}},
	}
	for i, c := range cases {
		assert.Error(t, c.Validate(), "case %d", i)
	}
	assert.NoError(t, Config{}.Validate())
}

func TestDirectory_ListenAssignments(t *testing.T) {
	d := New(WithCapacityLookup(capacities(map[string]int{"bus": 40})))
	require.NoError(t, d.UpsertRoute(model.Route{ID: "r", Active: true}))

	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := d.Listen(ctx, bus)

	bus.Publish(events.RejectionEvent{RouteID: "r"})
	bus.Publish(events.AssignmentEvent{TripID: "t0", VehicleID: "bus"})
	bus.Publish(events.AssignmentEvent{TripID: "t1", VehicleID: "bus", RouteID: "r"})

	assert.Eventually(t, func() bool {
		r, _ := d.GetRoute("r")
		return r.CapacityCeiling == 40
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.CancellationEvent{TripID: "t1", VehicleID: "bus", RouteID: "r"})
	assert.Eventually(t, func() bool {
		r, _ := d.GetRoute("r")
		return len(r.Assigned) == 0 && r.CapacityCeiling == 0
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.AssignmentEvent{TripID: "t2", VehicleID: "bus", RouteID: "r"})
	assert.Eventually(t, func() bool {
		r, _ := d.GetRoute("r")
		return r.CapacityCeiling == 40
	}, time.Second, 5*time.Millisecond)
	bus.Publish(events.VehicleRemovedEvent{VehicleID: "bus"})
	assert.Eventually(t, func() bool {
		r, _ := d.GetRoute("r")
		return len(r.Assigned) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	bus.Close()
}

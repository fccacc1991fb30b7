package fleet

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/maintenance"
	"github.com/kilianp07/fleetdispatch/core/model"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func window(startH, endH int) model.Window {
	return model.Window{
		Departure: t0.Add(time.Duration(startH) * time.Hour),
		Arrival:   t0.Add(time.Duration(endH) * time.Hour),
	}
}

func bus(id string, capacity int) model.Vehicle {
	return model.Vehicle{ID: id, Capacity: capacity, Kind: model.KindBus, LastService: t0}
}

func TestRegistry_RegisterOrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"b", "a", "c"} {
		_, err := r.Register(bus(id, 40))
		require.NoError(t, err)
	}
	_, err := r.Register(bus("a", 10))
	assert.True(t, errors.Is(err, model.ErrConflict))

	var ids []string
	for _, v := range r.Vehicles() {
		ids = append(ids, v.ID())
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_RegisterValidates(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(model.Vehicle{ID: "x"})
	assert.True(t, errors.Is(err, model.ErrInvalidVehicle))
	_, err = r.Register(model.Vehicle{Capacity: 3})
	assert.True(t, errors.Is(err, model.ErrInvalidVehicle))
}

func TestRegistry_RemoveAndGet(t *testing.T) {
	r := NewRegistry()
	st, err := r.Register(bus("a", 40))
	require.NoError(t, err)
	require.NoError(t, r.Remove("a"))
	_, err = r.Get("a")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.True(t, errors.Is(r.Remove("a"), model.ErrNotFound))

	// a stale handle can no longer be booked
	err = st.Book(model.TripInterval{TripID: "t", Window: window(0, 1)})
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.False(t, st.IsAvailable(window(0, 1)))
}

func TestRegistry_ScanStops(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		_, err := r.Register(bus(fmt.Sprintf("v%d", i), 10))
		require.NoError(t, err)
	}
	seen := 0
	r.Scan(func(i int, _ *VehicleState) bool {
		seen++
		return i < 1
	})
	assert.Equal(t, 2, seen)
}

func TestRegistry_MaxTripsPerDay(t *testing.T) {
	r := NewRegistry(WithMaxTripsPerDay(1))
	st, err := r.Register(bus("a", 40))
	require.NoError(t, err)
	require.NoError(t, st.Book(model.TripInterval{TripID: "t1", Window: window(0, 1)}))
	err = st.Book(model.TripInterval{TripID: "t2", Window: window(2, 3)})
	assert.True(t, errors.Is(err, model.ErrConflict))
	require.NoError(t, st.Book(model.TripInterval{TripID: "t3", Window: window(24, 25)}))
}

func TestRegistry_Turnaround(t *testing.T) {
	r := NewRegistry(WithTurnaround(30 * time.Minute))
	st, err := r.Register(bus("a", 40))
	require.NoError(t, err)
	require.NoError(t, st.Book(model.TripInterval{TripID: "t1", Window: window(0, 1)}))
	w := model.Window{Departure: t0.Add(70 * time.Minute), Arrival: t0.Add(2 * time.Hour)}
	assert.False(t, st.IsAvailable(w))
}

func TestVehicleState_ConcurrentBookingsNeverOverlap(t *testing.T) {
	r := NewRegistry()
	st, err := r.Register(bus("a", 40))
	require.NoError(t, err)

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if st.Book(model.TripInterval{TripID: fmt.Sprintf("t%d", i), Window: window(0, 2)}) == nil {
				atomic.AddInt32(&ok, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, 1, st.TripCount())
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry()
	a, err := r.Register(bus("a", 40))
	require.NoError(t, err)
	_, err = r.Register(model.Vehicle{ID: "v", Capacity: 10, Kind: model.KindVan, Class: model.ClassSpecialPurpose, LastService: t0.Add(-30 * 24 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, a.Book(model.TripInterval{TripID: "t1", Window: window(0, 5)}))

	s := r.Stats(window(0, 10), maintenance.DefaultPolicy())
	assert.Equal(t, 2, s.Vehicles)
	assert.Equal(t, 1, s.Trips)
	assert.Equal(t, 1, s.NeedsService)
	assert.Equal(t, 2, s.ByStatus["available"])
	assert.Equal(t, 1, s.ByClass["special_purpose"])
	assert.Equal(t, 50, s.SeatsAvailable)
	assert.InDelta(t, 0.25, s.MeanUtilization, 1e-9)
	assert.InDelta(t, 0.5, s.MaxUtilization, 1e-9)
	assert.InDelta(t, 0.35355, s.StdUtilization, 1e-4)
}

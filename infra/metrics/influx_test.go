package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordAssignment(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	err := sink.RecordAssignment(coremetrics.Assignment{
		TripID:    "trip-1",
		VehicleID: "bus-1",
		RouteID:   "r1",
		Priority:  "staff",
		Capacity:  12,
		Fallbacks: 1,
		Latency:   1500 * time.Microsecond,
		Time:      now,
	})
	require.NoError(t, err)

	p := write.NewPointWithMeasurement("assignment").
		AddTag("vehicle_id", "bus-1").
		AddTag("priority", "staff").
		AddTag("emergency", "false").
		AddTag("route_id", "r1").
		AddField("trip_id", "trip-1").
		AddField("capacity", 12).
		AddField("fallbacks", 1).
		AddField("latency_ms", 1.5).
		SetTime(now)
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, line(p), rec.bodies[0])
}

func TestInfluxSink_RecordRejectionAndStatus(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	require.NoError(t, sink.RecordRejection(coremetrics.Rejection{
		Outcome:   "emergency_unserviceable",
		Priority:  "unknown",
		Emergency: true,
		Capacity:  3,
		Time:      now,
	}))
	require.NoError(t, sink.RecordVehicleStatus(coremetrics.VehicleStatus{
		VehicleID:        "van-1",
		Class:            "special_purpose",
		Kind:             "van",
		Status:           "in_maintenance",
		NeedsService:     true,
		DaysSinceService: 21,
		Trips:            2,
		Time:             now,
	}))
	require.NoError(t, sink.RecordCancellation(coremetrics.Cancellation{VehicleID: "van-1", TripID: "t", Time: now}))

	rej := write.NewPointWithMeasurement("rejection").
		AddTag("outcome", "emergency_unserviceable").
		AddTag("priority", "unknown").
		AddTag("emergency", "true").
		AddField("capacity", 3).
		AddField("latency_ms", 0.0).
		SetTime(now)
	st := write.NewPointWithMeasurement("vehicle_status").
		AddTag("vehicle_id", "van-1").
		AddTag("class", "special_purpose").
		AddTag("kind", "van").
		AddField("status", "in_maintenance").
		AddField("needs_service", true).
		AddField("days_since_service", 21).
		AddField("trips", 2).
		SetTime(now)
	tc := write.NewPointWithMeasurement("trip_change").
		AddTag("vehicle_id", "van-1").
		AddTag("rescheduled", "false").
		AddField("trip_id", "t").
		SetTime(now)
	assert.Equal(t, []string{line(rej), line(st), line(tc)}, rec.bodies)
}

func TestInfluxSink_WriteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	assert.Error(t, sink.RecordFleetSize(3))
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}

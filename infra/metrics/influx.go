package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxConfig identifies the InfluxDB bucket written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatch records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes an assignment point.
func (s *InfluxSink) RecordAssignment(a coremetrics.Assignment) error {
	p := write.NewPointWithMeasurement("assignment").
		AddTag("vehicle_id", a.VehicleID).
		AddTag("priority", a.Priority).
		AddTag("emergency", strconv.FormatBool(a.Emergency))
	if a.RouteID != "" {
		p = p.AddTag("route_id", a.RouteID)
	}
	p = p.AddField("trip_id", a.TripID).
		AddField("capacity", a.Capacity).
		AddField("fallbacks", a.Fallbacks).
		AddField("latency_ms", round3(a.Latency.Seconds()*1000)).
		SetTime(a.Time)
	return s.write(p)
}

// RecordRejection writes a rejection point.
func (s *InfluxSink) RecordRejection(r coremetrics.Rejection) error {
	p := write.NewPointWithMeasurement("rejection").
		AddTag("outcome", r.Outcome).
		AddTag("priority", r.Priority).
		AddTag("emergency", strconv.FormatBool(r.Emergency))
	if r.RouteID != "" {
		p = p.AddTag("route_id", r.RouteID)
	}
	p = p.AddField("capacity", r.Capacity).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordCancellation writes a trip change point.
func (s *InfluxSink) RecordCancellation(c coremetrics.Cancellation) error {
	p := write.NewPointWithMeasurement("trip_change").
		AddTag("vehicle_id", c.VehicleID).
		AddTag("rescheduled", strconv.FormatBool(c.Rescheduled)).
		AddField("trip_id", c.TripID).
		SetTime(c.Time)
	return s.write(p)
}

// RecordVehicleStatus writes a snapshot of a vehicle.
func (s *InfluxSink) RecordVehicleStatus(v coremetrics.VehicleStatus) error {
	p := write.NewPointWithMeasurement("vehicle_status").
		AddTag("vehicle_id", v.VehicleID).
		AddTag("class", v.Class).
		AddTag("kind", v.Kind).
		AddField("status", v.Status).
		AddField("needs_service", v.NeedsService).
		AddField("days_since_service", v.DaysSinceService).
		AddField("trips", v.Trips).
		SetTime(v.Time)
	return s.write(p)
}

// RecordFleetSize writes the number of registered vehicles.
func (s *InfluxSink) RecordFleetSize(size int) error {
	p := write.NewPointWithMeasurement("fleet_size").
		AddField("vehicles", size).
		SetTime(time.Now())
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

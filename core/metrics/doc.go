// Package metrics defines the interfaces used to record dispatch and fleet
// observations. Sinks like the Prometheus and InfluxDB ones in infra/metrics
// implement MetricsSink plus any of the optional recorder interfaces, and can
// be combined with NewMultiSink. NewMetricsSink builds sinks from
// configuration and returns a MultiSink when several are configured.
package metrics

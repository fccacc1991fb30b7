// Package e2e runs the assembled service against real InfluxDB and
// Mosquitto containers.
package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient reads back what the service wrote to InfluxDB.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Fields returns the field values of the measurement points written in the
// last hour with the given tag, keyed by field name.
func (c *InfluxClient) Fields(ctx context.Context, measurement, tag, value string) (map[string]any, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
  |> range(start: -1h)
  |> filter(fn: (r) => r._measurement == %q and r[%q] == %q)`, c.bucket, measurement, tag, value)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()
	out := map[string]any{}
	for res.Next() {
		out[res.Record().Field()] = res.Record().Value()
	}
	return out, res.Err()
}

func (c *InfluxClient) Close() { c.client.Close() }

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  qos:
    assignment: 1
dispatch:
  min_turnaround_minutes: 15
  max_trips_per_day: 6
maintenance:
  auto_flag: true
metrics:
  sinks:
    - type: "nop"
fleet:
  vehicles:
    - id: bus-1
      capacity: 50
      last_service: "2025-03-01T00:00:00Z"
    - id: van-1
      kind: van
      class: special_purpose
      capacity: 6
  routes:
    - id: r1
      stops: [a, b]
      travel_time_minutes: 20
      min_capacity: 20
  users:
    - id: alice
      role: staff
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "cli", cfg.MQTT.ClientID)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["assignment"])
	assert.Equal(t, 15*time.Minute, cfg.Dispatch.Turnaround())
	assert.Equal(t, 6, cfg.Dispatch.MaxTripsPerDay)
	assert.True(t, cfg.Maintenance.AutoFlag)
	assert.Equal(t, 30, cfg.Maintenance.HeavyIntervalDays, "defaults applied")
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)

	vs, err := cfg.Fleet.Models()
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), vs[0].LastService.UTC())
	assert.Equal(t, model.KindVan, vs[1].Kind)
	assert.True(t, vs[1].SpecialPurpose())
	require.Len(t, cfg.Fleet.Routes, 1)
	assert.Equal(t, []string{"a", "b"}, cfg.Fleet.Routes[0].Stops)
	assert.Equal(t, "staff", cfg.Fleet.Users[0].Role)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"dispatch": {"max_trips_per_day": 2}}`)
	t.Setenv("FD_DISPATCH__MAX_TRIPS_PER_DAY", "9")
	t.Setenv("FD_HTTP__ADDR", ":9999")
	t.Setenv("FD_LOGGING__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Dispatch.MaxTripsPerDay)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ``))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cases := map[string]string{
		"duplicate vehicle": "fleet:\n  vehicles:\n    - {id: a, capacity: 1}\n    - {id: a, capacity: 2}\n",
		"bad vehicle":       "fleet:\n  vehicles:\n    - {id: a, capacity: 0}\n",
		"bad role":          "fleet:\n  users:\n    - {id: a, role: dean}\n",
		"mqtt broker":       "mqtt:\n  enabled: true\n",
		"logging level":     "logging:\n  level: loud\n",
		"dispatch":          "dispatch:\n  max_trips_per_day: -1\n",
		"origin pattern":    "http:\n  allowed_origins: [\"[\"]\n",
	}
	for name, data := range cases {
		_, err := Load(writeConfig(t, "config.yaml", data))
		assert.Error(t, err, name)
	}
}

func TestSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "config.yaml"))
	require.NoError(t, err)
	vs, err := cfg.Fleet.Models()
	require.NoError(t, err)
	assert.Len(t, vs, 5)
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.Maintenance.AutoFlag, "sweeping would pull overdue vehicles out of emergency dispatch")
}

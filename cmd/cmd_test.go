package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
fleet:
  vehicles:
    - {id: bus-1, capacity: 50}
    - {id: van-1, kind: van, class: special_purpose, capacity: 6}
  routes:
    - {id: r1, stops: [a, b], travel_time_minutes: 30, min_capacity: 20}
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestDispatchCommand(t *testing.T) {
	out := execute(t, "dispatch", "--route", "r1", "--departure", "2030-01-07T08:00:00Z")
	var res struct {
		Outcome   string `json:"outcome"`
		VehicleID string `json:"vehicle_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, "assigned", res.Outcome)
	assert.Equal(t, "bus-1", res.VehicleID)
}

func TestFleetLsCommand(t *testing.T) {
	out := execute(t, "fleet", "ls")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "bus-1")
	assert.Contains(t, lines[2], "special_purpose")
}

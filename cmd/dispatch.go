package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/core/model"
)

var dispatchOpts struct {
	requester     string
	route         string
	capacity      int
	emergency     bool
	emergencyType string
	departure     string
	arrival       string
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch one request against the configured fleet",
	RunE:  runDispatch,
}

func init() {
	f := dispatchCmd.Flags()
	f.StringVar(&dispatchOpts.requester, "requester", "", "requester id")
	f.StringVar(&dispatchOpts.route, "route", "", "route id")
	f.IntVar(&dispatchOpts.capacity, "capacity", 0, "passengers to seat")
	f.BoolVar(&dispatchOpts.emergency, "emergency", false, "emergency request")
	f.StringVar(&dispatchOpts.emergencyType, "emergency-type", "", "emergency type, e.g. medical")
	f.StringVar(&dispatchOpts.departure, "departure", "", "departure time (RFC 3339), default in 15 minutes")
	f.StringVar(&dispatchOpts.arrival, "arrival", "", "arrival time (RFC 3339), derived from the route when omitted")
	rootCmd.AddCommand(dispatchCmd)
}

func parseTime(name, v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	dep, err := parseTime("departure", dispatchOpts.departure, time.Now().Add(15*time.Minute).Truncate(time.Minute))
	if err != nil {
		return err
	}
	var defArrival time.Time
	if dispatchOpts.route == "" {
		defArrival = dep.Add(time.Hour)
	}
	arr, err := parseTime("arrival", dispatchOpts.arrival, defArrival)
	if err != nil {
		return err
	}

	svc, err := offline()
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Manager.Dispatch(model.Request{
		RequesterID:   dispatchOpts.requester,
		RouteID:       dispatchOpts.route,
		Window:        model.Window{Departure: dep, Arrival: arr},
		Capacity:      dispatchOpts.capacity,
		Emergency:     dispatchOpts.emergency,
		EmergencyType: dispatchOpts.emergencyType,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

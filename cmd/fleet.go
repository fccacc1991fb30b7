package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the configured vehicles",
	RunE:  runFleetLs,
}

func init() {
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	svc, err := offline()
	if err != nil {
		return err
	}
	defer svc.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCLASS\tCAPACITY\tSTATUS\tMAINTENANCE\tDAYS SINCE SERVICE")
	for _, v := range svc.Manager.Vehicles() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%d\n",
			v.VehicleID, v.Kind, v.Class, v.Capacity, v.Status, v.Maintenance.Status, v.Maintenance.DaysSinceService)
	}
	return w.Flush()
}

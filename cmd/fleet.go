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
	Short: "List registered ambulances",
	RunE:  runFleetLs,
}

func init() {
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	var ambulances []struct {
		ID           string `json:"id"`
		CallSign     string `json:"call_sign"`
		VehicleClass string `json:"vehicle_class"`
		Status       string `json:"status"`
		Active       bool   `json:"active"`
	}
	if err := apiCall("GET", "/api/ambulances", nil, &ambulances); err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCALL SIGN\tCLASS\tSTATUS\tACTIVE")
	for _, a := range ambulances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", a.ID, a.CallSign, a.VehicleClass, a.Status, a.Active)
	}
	return w.Flush()
}

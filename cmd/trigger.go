package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Inject a test emergency alert",
	RunE:  runTrigger,
}

var triggerOpts struct {
	ElderID   string
	ElderName string
	AlertType string
	Priority  string
	Lat       float64
	Lng       float64
	Address   string
}

func init() {
	triggerCmd.Flags().StringVar(&triggerOpts.ElderID, "elder", "elder-test", "elder identifier")
	triggerCmd.Flags().StringVar(&triggerOpts.ElderName, "name", "", "elder display name")
	triggerCmd.Flags().StringVar(&triggerOpts.AlertType, "type", "sos_button", "alert type")
	triggerCmd.Flags().StringVar(&triggerOpts.Priority, "priority", "high", "alert priority")
	triggerCmd.Flags().Float64Var(&triggerOpts.Lat, "lat", 0, "elder latitude")
	triggerCmd.Flags().Float64Var(&triggerOpts.Lng, "lng", 0, "elder longitude")
	triggerCmd.Flags().StringVar(&triggerOpts.Address, "address", "", "elder street address")
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"elder_id":   triggerOpts.ElderID,
		"elder_name": triggerOpts.ElderName,
		"alert_type": triggerOpts.AlertType,
		"priority":   triggerOpts.Priority,
		"lat":        triggerOpts.Lat,
		"lng":        triggerOpts.Lng,
		"address":    triggerOpts.Address,
	}
	var alert struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := apiCall("POST", "/api/emergency/trigger", body, &alert); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", alert.ID, alert.Status)
	return nil
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/infra/logger"
	"github.com/carelink/dispatchd/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Emulate ambulance on-board units publishing GPS over MQTT",
	RunE:  runSimulate,
}

var simOpts struct {
	Broker   string
	IDs      []string
	Interval time.Duration
	Lat      float64
	Lng      float64
	RadiusKm float64
	SpeedKmh float64
	Seed     int64
}

func init() {
	simulateCmd.Flags().StringVar(&simOpts.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	simulateCmd.Flags().StringSliceVar(&simOpts.IDs, "ids", nil, "ambulance ids to simulate")
	simulateCmd.Flags().DurationVar(&simOpts.Interval, "interval", 5*time.Second, "publish interval")
	simulateCmd.Flags().Float64Var(&simOpts.Lat, "lat", 6.9271, "service area center latitude")
	simulateCmd.Flags().Float64Var(&simOpts.Lng, "lng", 79.8612, "service area center longitude")
	simulateCmd.Flags().Float64Var(&simOpts.RadiusKm, "radius", 5, "service area radius in km")
	simulateCmd.Flags().Float64Var(&simOpts.SpeedKmh, "speed", 40, "vehicle speed in km/h")
	simulateCmd.Flags().Int64Var(&simOpts.Seed, "seed", time.Now().UnixNano(), "random seed")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return simulator.Run(ctx, simulator.Config{
		Broker:   simOpts.Broker,
		ClientID: "dispatchd-simulator",
		IDs:      simOpts.IDs,
		Interval: simOpts.Interval,
		Center:   model.GeoPoint{Lat: simOpts.Lat, Lng: simOpts.Lng},
		RadiusKm: simOpts.RadiusKm,
		SpeedKmh: simOpts.SpeedKmh,
		Seed:     simOpts.Seed,
	}, logger.New("simulator"))
}

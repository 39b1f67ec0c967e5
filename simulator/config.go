package simulator

import (
	"fmt"
	"time"

	"github.com/carelink/dispatchd/core/model"
)

// Config drives a simulated ambulance fleet.
type Config struct {
	Broker   string
	ClientID string
	IDs      []string
	Interval time.Duration
	Center   model.GeoPoint
	RadiusKm float64
	SpeedKmh float64
	Seed     int64
}

// Validate rejects configurations the simulator cannot run with.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if len(c.IDs) == 0 {
		return fmt.Errorf("at least one ambulance id is required")
	}
	if !c.Center.Valid() {
		return fmt.Errorf("center coordinates out of range")
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.RadiusKm <= 0 {
		c.RadiusKm = 5
	}
	if c.SpeedKmh <= 0 {
		c.SpeedKmh = 40
	}
	return nil
}

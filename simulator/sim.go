// Package simulator emulates ambulance on-board units: a fleet of vehicles
// driving between random waypoints, publishing their GPS position to the
// broker topics the location ingest subscribes to.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/carelink/dispatchd/core/logger"
	"github.com/carelink/dispatchd/infra/mqtt"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
}

type locationReport struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RecordedAt string  `json:"recorded_at"`
}

// Run drives the fleet until ctx is cancelled, publishing one position per
// ambulance per interval.
func Run(ctx context.Context, cfg Config, log logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := mqtt.NewClientOptions(mqtt.Config{Broker: cfg.Broker, ClientID: cfg.ClientID})
	if err != nil {
		return err
	}
	cli := paho.NewClient(opts)
	if tok := cli.Connect(); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("connect %s: %w", cfg.Broker, tok.Error())
	}
	defer cli.Disconnect(250)

	fleet := GenerateFleet(cfg)
	log.Infof("simulating %d ambulances around (%.4f, %.4f)", len(fleet), cfg.Center.Lat, cfg.Center.Lng)
	return drive(ctx, fleet, cli, cfg.Interval, log)
}

func drive(ctx context.Context, fleet []*Ambulance, pub publisher, interval time.Duration, log logger.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			for _, a := range fleet {
				a.Advance(elapsed)
				publishPosition(pub, a, now, log)
			}
		}
	}
}

func publishPosition(pub publisher, a *Ambulance, now time.Time, log logger.Logger) {
	payload, err := json.Marshal(locationReport{
		Lat:        a.Position.Lat,
		Lng:        a.Position.Lng,
		RecordedAt: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Errorf("marshal position for %s: %v", a.ID, err)
		return
	}
	topic := fmt.Sprintf("fleet/%s/location", a.ID)
	if tok := pub.Publish(topic, 0, false, payload); tok.Wait() && tok.Error() != nil {
		log.Warnf("publish %s: %v", topic, tok.Error())
	}
}

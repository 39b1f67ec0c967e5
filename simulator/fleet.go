package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/carelink/dispatchd/core/model"
)

const (
	kmPerDegLat = 110.574
	kmPerDegLng = 111.320
)

// Ambulance is one simulated vehicle driving between random waypoints
// inside the configured service area.
type Ambulance struct {
	ID       string
	Position model.GeoPoint

	waypoint model.GeoPoint
	speedKmh float64
	rng      *rand.Rand
	center   model.GeoPoint
	radiusKm float64
}

// GenerateFleet places one ambulance per id at a random point inside the
// service area. The seed makes runs reproducible.
func GenerateFleet(cfg Config) []*Ambulance {
	rng := rand.New(rand.NewSource(cfg.Seed))
	fleet := make([]*Ambulance, 0, len(cfg.IDs))
	for _, id := range cfg.IDs {
		a := &Ambulance{
			ID:       id,
			speedKmh: cfg.SpeedKmh,
			rng:      rand.New(rand.NewSource(rng.Int63())),
			center:   cfg.Center,
			radiusKm: cfg.RadiusKm,
		}
		a.Position = a.randomPoint()
		a.waypoint = a.randomPoint()
		fleet = append(fleet, a)
	}
	return fleet
}

// Advance moves the ambulance toward its waypoint for the elapsed duration,
// picking a fresh waypoint once it gets there.
func (a *Ambulance) Advance(elapsed time.Duration) {
	stepKm := a.speedKmh * elapsed.Hours()
	for stepKm > 0 {
		remaining := distanceKm(a.Position, a.waypoint)
		if remaining <= stepKm {
			a.Position = a.waypoint
			a.waypoint = a.randomPoint()
			stepKm -= remaining
			continue
		}
		frac := stepKm / remaining
		a.Position.Lat += (a.waypoint.Lat - a.Position.Lat) * frac
		a.Position.Lng += (a.waypoint.Lng - a.Position.Lng) * frac
		return
	}
}

func (a *Ambulance) randomPoint() model.GeoPoint {
	// uniform over the disk, not the bounding square
	r := a.radiusKm * math.Sqrt(a.rng.Float64())
	theta := a.rng.Float64() * 2 * math.Pi
	return model.GeoPoint{
		Lat: a.center.Lat + r*math.Sin(theta)/kmPerDegLat,
		Lng: a.center.Lng + r*math.Cos(theta)/(kmPerDegLng*math.Cos(a.center.Lat*math.Pi/180)),
	}
}

// distanceKm is an equirectangular approximation, plenty for waypoint
// steering over a few kilometres.
func distanceKm(p, q model.GeoPoint) float64 {
	latKm := (q.Lat - p.Lat) * kmPerDegLat
	lngKm := (q.Lng - p.Lng) * kmPerDegLng * math.Cos((p.Lat+q.Lat)/2*math.Pi/180)
	return math.Hypot(latKm, lngKm)
}

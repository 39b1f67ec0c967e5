package model

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// GeoPoint is a WGS84 coordinate pair with an optional human-readable address.
type GeoPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Valid reports whether the point carries usable coordinates. The zero value
// (0,0) is treated as unset; it is in the Gulf of Guinea, not a service area.
func (p GeoPoint) Valid() bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Zero reports whether the point is unset.
func (p GeoPoint) Zero() bool { return p.Lat == 0 && p.Lng == 0 }

// DistanceKm returns the great-circle distance to other using the haversine
// formula.
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Location is a GeoPoint observed at a point in time.
type Location struct {
	GeoPoint
	RecordedAt time.Time `json:"recorded_at"`
}

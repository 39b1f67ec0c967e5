// Package matcher ranks available ambulances for an emergency location.
// Ranking is pure: it never mutates registry state and never sees
// non-available vehicles.
package matcher

import (
	"sort"

	"github.com/carelink/dispatchd/core/model"
)

// DefaultAverageSpeedKmh is the assumed door-to-door speed used for ETA
// estimates when the configuration does not override it. ETA is a flat
// distance/speed estimate, not traffic routing.
const DefaultAverageSpeedKmh = 40.0

// Candidate is one ranked ambulance. DistanceKm and ETAMinutes are nil in
// degraded mode, when the emergency carried no usable coordinates.
type Candidate struct {
	Ambulance  model.Ambulance `json:"ambulance"`
	DistanceKm *float64        `json:"distance_km,omitempty"`
	ETAMinutes *float64        `json:"eta_minutes,omitempty"`
}

// Matcher computes ranked candidates from a fleet snapshot.
type Matcher struct {
	avgSpeedKmh float64
}

// New creates a Matcher. A non-positive speed falls back to the default.
func New(avgSpeedKmh float64) *Matcher {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = DefaultAverageSpeedKmh
	}
	return &Matcher{avgSpeedKmh: avgSpeedKmh}
}

// Rank returns candidates for origin ordered by distance, closest first.
// Ties break by capability class (more capable first), then by id so the
// result is deterministic. radiusKm <= 0 means unbounded; limit <= 0 means
// no cap. An invalid origin degrades to the unranked candidate list.
func (m *Matcher) Rank(origin model.GeoPoint, radiusKm float64, limit int, fleet []model.Ambulance) []Candidate {
	eligible := make([]model.Ambulance, 0, len(fleet))
	for _, a := range fleet {
		if a.Dispatchable() {
			eligible = append(eligible, a)
		}
	}

	if !origin.Valid() {
		return m.degraded(eligible, limit)
	}

	res := make([]Candidate, 0, len(eligible))
	for _, a := range eligible {
		d := origin.DistanceKm(a.Location.GeoPoint)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		eta := d / m.avgSpeedKmh * 60
		dist := d
		res = append(res, Candidate{Ambulance: a, DistanceKm: &dist, ETAMinutes: &eta})
	}
	sort.Slice(res, func(i, j int) bool {
		if *res[i].DistanceKm != *res[j].DistanceKm {
			return *res[i].DistanceKm < *res[j].DistanceKm
		}
		ri, rj := res[i].Ambulance.Class.Rank(), res[j].Ambulance.Class.Rank()
		if ri != rj {
			return ri > rj
		}
		return res[i].Ambulance.ID < res[j].Ambulance.ID
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

// degraded returns every available ambulance unranked. Callers must handle
// the missing distance and eta explicitly.
func (m *Matcher) degraded(eligible []model.Ambulance, limit int) []Candidate {
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	res := make([]Candidate, 0, len(eligible))
	for _, a := range eligible {
		res = append(res, Candidate{Ambulance: a})
	}
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

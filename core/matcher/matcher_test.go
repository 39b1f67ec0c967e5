package matcher

import (
	"testing"

	"github.com/carelink/dispatchd/core/model"
)

func amb(id string, lat, lng float64, status model.AmbulanceStatus) model.Ambulance {
	return model.Ambulance{
		ID:       id,
		Class:    model.ClassBasic,
		Status:   status,
		Active:   true,
		Location: model.Location{GeoPoint: model.GeoPoint{Lat: lat, Lng: lng}},
	}
}

func TestRankClosestFirst(t *testing.T) {
	origin := model.GeoPoint{Lat: 6.9271, Lng: 79.8612}
	// b is roughly 5 km north of a
	a := amb("a", 6.9271, 79.8612, model.AmbulanceAvailable)
	b := amb("b", 6.9721, 79.8612, model.AmbulanceAvailable)

	m := New(40)
	got := m.Rank(origin, 0, 0, []model.Ambulance{b, a})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Ambulance.ID != "a" || got[1].Ambulance.ID != "b" {
		t.Fatalf("expected a before b, got %s, %s", got[0].Ambulance.ID, got[1].Ambulance.ID)
	}
	if *got[0].DistanceKm != 0 {
		t.Fatalf("co-located ambulance must have distance 0, got %v", *got[0].DistanceKm)
	}
	if d := *got[1].DistanceKm; d < 4.5 || d > 5.5 {
		t.Fatalf("expected ~5 km, got %v", d)
	}
	for _, c := range got {
		if c.ETAMinutes == nil {
			t.Fatal("eta missing for valid origin")
		}
	}
	// 5 km at 40 km/h is 7.5 minutes
	if eta := *got[1].ETAMinutes; eta < 6.5 || eta > 8.5 {
		t.Fatalf("expected ~7.5 min eta, got %v", eta)
	}
}

func TestRankExcludesNonAvailable(t *testing.T) {
	origin := model.GeoPoint{Lat: 6.9271, Lng: 79.8612}
	fleet := []model.Ambulance{
		amb("a", 6.93, 79.86, model.AmbulanceEnRoute),
		amb("b", 6.93, 79.86, model.AmbulanceBusy),
		amb("c", 6.93, 79.86, model.AmbulanceMaintenance),
		amb("d", 6.93, 79.86, model.AmbulanceOffline),
		amb("e", 6.93, 79.86, model.AmbulanceAvailable),
	}
	inactive := amb("f", 6.93, 79.86, model.AmbulanceAvailable)
	inactive.Active = false
	fleet = append(fleet, inactive)

	got := New(0).Rank(origin, 0, 0, fleet)
	if len(got) != 1 || got[0].Ambulance.ID != "e" {
		t.Fatalf("only the active available ambulance may rank: %#v", got)
	}
	for _, c := range got {
		if c.Ambulance.Status != model.AmbulanceAvailable {
			t.Fatalf("non-available ambulance ranked: %s", c.Ambulance.Status)
		}
	}
}

func TestRankTieBreakByClassThenID(t *testing.T) {
	origin := model.GeoPoint{Lat: 6.9271, Lng: 79.8612}
	basic := amb("z", 6.9271, 79.8612, model.AmbulanceAvailable)
	critical := amb("y", 6.9271, 79.8612, model.AmbulanceAvailable)
	critical.Class = model.ClassCriticalCare
	basic2 := amb("a", 6.9271, 79.8612, model.AmbulanceAvailable)

	got := New(40).Rank(origin, 0, 0, []model.Ambulance{basic, critical, basic2})
	if got[0].Ambulance.ID != "y" {
		t.Fatalf("critical_care must win the distance tie, got %s", got[0].Ambulance.ID)
	}
	if got[1].Ambulance.ID != "a" || got[2].Ambulance.ID != "z" {
		t.Fatalf("equal class must break by id: %s, %s", got[1].Ambulance.ID, got[2].Ambulance.ID)
	}
}

func TestRankRadiusAndLimit(t *testing.T) {
	origin := model.GeoPoint{Lat: 6.9271, Lng: 79.8612}
	near := amb("near", 6.9280, 79.8612, model.AmbulanceAvailable)
	far := amb("far", 7.2000, 79.8612, model.AmbulanceAvailable)

	got := New(40).Rank(origin, 10, 0, []model.Ambulance{near, far})
	if len(got) != 1 || got[0].Ambulance.ID != "near" {
		t.Fatalf("radius filter wrong: %#v", got)
	}
	got = New(40).Rank(origin, 0, 1, []model.Ambulance{near, far})
	if len(got) != 1 || got[0].Ambulance.ID != "near" {
		t.Fatalf("limit must keep the closest: %#v", got)
	}
}

func TestRankDegradedWithoutCoordinates(t *testing.T) {
	a := amb("a", 6.93, 79.86, model.AmbulanceAvailable)
	b := amb("b", 6.95, 79.90, model.AmbulanceAvailable)
	busy := amb("c", 6.95, 79.90, model.AmbulanceBusy)

	got := New(40).Rank(model.GeoPoint{}, 5, 0, []model.Ambulance{b, busy, a})
	if len(got) != 2 {
		t.Fatalf("degraded mode must return every available ambulance, got %d", len(got))
	}
	if got[0].Ambulance.ID != "a" || got[1].Ambulance.ID != "b" {
		t.Fatalf("degraded mode must order by id: %s, %s", got[0].Ambulance.ID, got[1].Ambulance.ID)
	}
	for _, c := range got {
		if c.DistanceKm != nil || c.ETAMinutes != nil {
			t.Fatalf("degraded candidates must carry nil distance and eta: %#v", c)
		}
	}
}

func TestSortedByNonDecreasingDistance(t *testing.T) {
	origin := model.GeoPoint{Lat: 6.9271, Lng: 79.8612}
	fleet := []model.Ambulance{
		amb("a", 7.00, 79.90, model.AmbulanceAvailable),
		amb("b", 6.93, 79.87, model.AmbulanceAvailable),
		amb("c", 6.95, 79.95, model.AmbulanceAvailable),
		amb("d", 6.9271, 79.8612, model.AmbulanceAvailable),
	}
	got := New(40).Rank(origin, 0, 0, fleet)
	for i := 1; i < len(got); i++ {
		if *got[i].DistanceKm < *got[i-1].DistanceKm {
			t.Fatalf("distances not non-decreasing at %d: %v < %v", i, *got[i].DistanceKm, *got[i-1].DistanceKm)
		}
	}
}

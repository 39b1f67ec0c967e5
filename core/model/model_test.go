package model

import (
	"math"
	"testing"
)

func TestGeoPointDistanceKm(t *testing.T) {
	colombo := GeoPoint{Lat: 6.9271, Lng: 79.8612}
	kandy := GeoPoint{Lat: 7.2906, Lng: 80.6337}
	d := colombo.DistanceKm(kandy)
	// straight-line distance Colombo-Kandy is roughly 94 km
	if d < 90 || d > 100 {
		t.Fatalf("expected ~94 km, got %v", d)
	}
	if colombo.DistanceKm(colombo) != 0 {
		t.Fatalf("distance to self must be 0")
	}
}

func TestGeoPointValid(t *testing.T) {
	if (GeoPoint{}).Valid() {
		t.Fatal("zero point must be invalid")
	}
	if (GeoPoint{Lat: 91, Lng: 10}).Valid() {
		t.Fatal("out-of-range latitude must be invalid")
	}
	if !(GeoPoint{Lat: 6.9271, Lng: 79.8612}).Valid() {
		t.Fatal("valid coordinates rejected")
	}
}

func TestAmbulanceValidate(t *testing.T) {
	a := Ambulance{VehicleNumber: "AMB-01", LicensePlate: "WP-1234", Class: ClassBasic, Capacity: 2}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid ambulance rejected: %v", err)
	}
	cases := []Ambulance{
		{LicensePlate: "WP-1234", Class: ClassBasic, Capacity: 1},
		{VehicleNumber: "AMB-01", Class: ClassBasic, Capacity: 1},
		{VehicleNumber: "AMB-01", LicensePlate: "WP-1234", Class: "van", Capacity: 1},
		{VehicleNumber: "AMB-01", LicensePlate: "WP-1234", Class: ClassBasic, Capacity: 0},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestClassRankOrdering(t *testing.T) {
	if ClassAir.Rank() <= ClassCriticalCare.Rank() {
		t.Fatal("air must outrank critical_care")
	}
	if ClassCriticalCare.Rank() <= ClassAdvanced.Rank() {
		t.Fatal("critical_care must outrank advanced")
	}
	if ClassAdvanced.Rank() <= ClassBasic.Rank() {
		t.Fatal("advanced must outrank basic")
	}
	if AmbulanceClass("van").Rank() != 0 {
		t.Fatal("unknown class must rank 0")
	}
}

func TestAlertStatusCanAdvance(t *testing.T) {
	chain := []AlertStatus{AlertPending, AlertAcknowledged, AlertDispatched, AlertEnRoute, AlertArrived, AlertCompleted}
	for i := 0; i < len(chain)-1; i++ {
		if !chain[i].CanAdvance(chain[i+1]) {
			t.Errorf("%s -> %s must be legal", chain[i], chain[i+1])
		}
	}
	if AlertPending.CanAdvance(AlertDispatched) {
		t.Fatal("skipping acknowledged must be illegal")
	}
	if AlertCompleted.CanAdvance(AlertPending) {
		t.Fatal("terminal state must not advance")
	}
	if AlertCancelled.CanAdvance(AlertPending) {
		t.Fatal("cancelled must not advance")
	}
}

func TestAlertStatusTerminal(t *testing.T) {
	for _, s := range []AlertStatus{AlertCompleted, AlertCancelled} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []AlertStatus{AlertPending, AlertAcknowledged, AlertDispatched, AlertEnRoute, AlertArrived} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestDispatchable(t *testing.T) {
	a := Ambulance{Status: AmbulanceAvailable, Active: true}
	if !a.Dispatchable() {
		t.Fatal("active available ambulance must be dispatchable")
	}
	a.Active = false
	if a.Dispatchable() {
		t.Fatal("inactive ambulance must not be dispatchable")
	}
	a = Ambulance{Status: AmbulanceEnRoute, Active: true}
	if a.Dispatchable() {
		t.Fatal("en_route ambulance must not be dispatchable")
	}
}

func TestParsePriority(t *testing.T) {
	if p, ok := ParsePriority("critical"); !ok || p != PriorityCritical {
		t.Fatalf("parse critical: %v %v", p, ok)
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatal("unknown priority accepted")
	}
	if PriorityCritical.Rank() <= PriorityHigh.Rank() {
		t.Fatal("critical must outrank high")
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := GeoPoint{Lat: 6.9271, Lng: 79.8612}
	b := GeoPoint{Lat: 6.9, Lng: 79.9}
	if diff := math.Abs(a.DistanceKm(b) - b.DistanceKm(a)); diff > 1e-9 {
		t.Fatalf("haversine must be symmetric, diff %v", diff)
	}
}

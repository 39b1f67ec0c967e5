package events

import (
	"time"

	"github.com/carelink/dispatchd/core/model"
)

// Wire names for the realtime payloads, shared with the polling clients.
const (
	TypeEmergencyAlert     = "emergency_alert"
	TypeDispatchAssigned   = "dispatch_assigned"
	TypeLocationUpdate     = "ambulance_location_update"
	TypeAmbulanceArrived   = "ambulance_arrived"
	TypeEmergencyCompleted = "emergency_completed"
	TypeDispatchStatus     = "dispatch_status_update"
)

// AlertTriggered is published when a new alert enters the queue.
type AlertTriggered struct {
	AlertID   string
	ElderID   string
	ElderName string
	Priority  model.Priority
	Location  model.GeoPoint
	At        time.Time
}

// DispatchAssigned is published after a successful allocation.
type DispatchAssigned struct {
	DispatchID  string
	AlertID     string
	AmbulanceID string
	DriverID    string
	ElderID     string
	Hospital    string
	DistanceKm  *float64
	ETAMinutes  *float64
	At          time.Time
}

// LocationUpdated is published on each driver position report.
type LocationUpdated struct {
	DispatchID  string
	AlertID     string
	AmbulanceID string
	ElderID     string
	Location    model.GeoPoint
	At          time.Time
}

// AmbulanceArrived is published when the driver marks arrival.
type AmbulanceArrived struct {
	DispatchID  string
	AlertID     string
	AmbulanceID string
	ElderID     string
	At          time.Time
}

// EmergencyCompleted is published when the response reaches a terminal state.
type EmergencyCompleted struct {
	DispatchID  string
	AlertID     string
	AmbulanceID string
	ElderID     string
	Cancelled   bool
	Reason      string
	At          time.Time
}

// DispatchStatusChanged is published on the remaining dispatch transitions,
// such as the driver accepting the assignment.
type DispatchStatusChanged struct {
	DispatchID  string
	AlertID     string
	AmbulanceID string
	ElderID     string
	Status      model.DispatchStatus
	At          time.Time
}

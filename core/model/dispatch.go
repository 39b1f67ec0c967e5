package model

import "time"

// DispatchStatus mirrors the post-acknowledgement states of the alert the
// dispatch serves.
type DispatchStatus string

const (
	DispatchAssigned  DispatchStatus = "assigned"
	DispatchEnRoute   DispatchStatus = "en_route"
	DispatchArrived   DispatchStatus = "arrived"
	DispatchCompleted DispatchStatus = "completed"
	DispatchCancelled DispatchStatus = "cancelled"
)

// Terminal reports whether the dispatch no longer holds its ambulance.
func (s DispatchStatus) Terminal() bool {
	return s == DispatchCompleted || s == DispatchCancelled
}

// Dispatch binds one emergency alert to one ambulance for the duration of a
// response. While non-terminal it holds exclusive ownership of both.
type Dispatch struct {
	ID          string         `json:"id"`
	AlertID     string         `json:"alert_id"`
	AmbulanceID string         `json:"ambulance_id"`
	DriverID    string         `json:"driver_id,omitempty"`
	Status      DispatchStatus `json:"status"`

	// DistanceKm and ETAMinutes are nil when the alert carried no usable
	// coordinates at assignment time.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	ETAMinutes *float64 `json:"eta_minutes,omitempty"`

	Hospital string `json:"hospital,omitempty"`

	AssignedAt  time.Time  `json:"assigned_at"`
	EnRouteAt   *time.Time `json:"en_route_at,omitempty"`
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Driver identifies the person operating an ambulance. An ambulance has at
// most one driver; a driver may be unassigned.
type Driver struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

package model

import (
	"fmt"
	"time"
)

// Priority classifies the urgency of an emergency alert.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority converts a wire string to a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s), true
	default:
		return "", false
	}
}

// AlertStatus is the lifecycle state of an emergency alert.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertDispatched   AlertStatus = "dispatched"
	AlertEnRoute      AlertStatus = "en_route"
	AlertArrived      AlertStatus = "arrived"
	AlertCompleted    AlertStatus = "completed"
	AlertCancelled    AlertStatus = "cancelled"
)

// alertOrder fixes the total order of the non-cancelled lifecycle.
var alertOrder = map[AlertStatus]int{
	AlertPending:      0,
	AlertAcknowledged: 1,
	AlertDispatched:   2,
	AlertEnRoute:      3,
	AlertArrived:      4,
	AlertCompleted:    5,
}

// Terminal reports whether no further transitions are allowed.
func (s AlertStatus) Terminal() bool {
	return s == AlertCompleted || s == AlertCancelled
}

// CanAdvance reports whether next is the immediate successor of s in the
// lifecycle order. Cancellation is handled separately and is legal from any
// non-terminal state.
func (s AlertStatus) CanAdvance(next AlertStatus) bool {
	cur, ok := alertOrder[s]
	if !ok {
		return false
	}
	nxt, ok := alertOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// EmergencyAlert is a triggered SOS event awaiting or undergoing response.
type EmergencyAlert struct {
	ID        string      `json:"id"`
	ElderID   string      `json:"elder_id"`
	ElderName string      `json:"elder_name,omitempty"`
	AlertType string      `json:"alert_type"` // reporting channel: sos_button, fall_detection, caregiver, vitals
	Priority  Priority    `json:"priority"`
	Location  GeoPoint    `json:"location"` // snapshot at trigger time
	Vitals    string      `json:"vitals,omitempty"`
	Status    AlertStatus `json:"status"`

	// CoordinatorID records who acknowledged the alert. Version increments on
	// every mutation and backs the optimistic checks in the queue.
	CoordinatorID string `json:"coordinator_id,omitempty"`
	Version       int64  `json:"version"`

	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
}

// Validate checks the fields required to trigger an alert.
func (a EmergencyAlert) Validate() error {
	if a.ElderID == "" {
		return fmt.Errorf("elder_id is required")
	}
	if a.AlertType == "" {
		return fmt.Errorf("alert_type is required")
	}
	if a.Priority.Rank() == 0 {
		return fmt.Errorf("unknown priority %q", a.Priority)
	}
	// a missing location degrades matching, out-of-range coordinates are junk
	if !a.Location.Zero() && !a.Location.Valid() {
		return fmt.Errorf("location coordinates out of range")
	}
	return nil
}

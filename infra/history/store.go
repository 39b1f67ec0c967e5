// Package history persists terminal dispatch outcomes. The analytics
// aggregator derives every statistic from these records; nothing in here
// mutates live engine state.
package history

import (
	"context"
	"time"

	"github.com/carelink/dispatchd/core/model"
)

// Record captures one finished emergency response.
type Record struct {
	AlertID     string         `json:"alert_id"`
	AlertType   string         `json:"alert_type"`
	Priority    model.Priority `json:"priority"`
	AmbulanceID string         `json:"ambulance_id,omitempty"`
	DriverID    string         `json:"driver_id,omitempty"`
	DistanceKm  *float64       `json:"distance_km,omitempty"`
	Outcome     string         `json:"outcome"` // completed or cancelled
	Reason      string         `json:"reason,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	ArrivedAt      *time.Time `json:"arrived_at,omitempty"`
	ClosedAt       time.Time  `json:"closed_at"`
}

// ResponseSeconds returns the acknowledge-to-arrival interval, the response
// time metric used by analytics. The second return is false when either
// timestamp is missing.
func (r Record) ResponseSeconds() (float64, bool) {
	if r.AcknowledgedAt == nil || r.ArrivedAt == nil {
		return 0, false
	}
	return r.ArrivedAt.Sub(*r.AcknowledgedAt).Seconds(), true
}

// Window bounds a query by ClosedAt. Zero values leave the bound open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	if !w.Start.IsZero() && ts.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && ts.After(w.End) {
		return false
	}
	return true
}

// Store persists and queries dispatch history records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, w Window) ([]Record, error)
	Close() error
}

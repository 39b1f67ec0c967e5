// Package metrics defines the observability surface for dispatch outcomes.
// Sinks live in infra/metrics; the engine only sees the interfaces here.
package metrics

import (
	"time"

	"github.com/carelink/dispatchd/core/model"
)

// DispatchOutcome is one terminal emergency response to be recorded.
type DispatchOutcome struct {
	AlertID         string
	AlertType       string
	Priority        model.Priority
	AmbulanceID     string
	Outcome         string // completed or cancelled
	DistanceKm      float64
	ResponseSeconds float64 // acknowledge to arrival; zero when unknown
	Time            time.Time
}

// Sink records dispatch outcomes for observability purposes.
type Sink interface {
	RecordDispatchOutcome(outcomes []DispatchOutcome) error
}

// AssignmentEvent captures one allocation attempt.
type AssignmentEvent struct {
	AlertID     string
	AmbulanceID string
	Won         bool
	Reason      string
	Time        time.Time
}

// AssignmentRecorder is implemented by sinks able to record allocation races.
type AssignmentRecorder interface {
	RecordAssignment(ev AssignmentEvent) error
}

// FleetSizeRecorder records the number of dispatchable ambulances.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatchOutcome([]DispatchOutcome) error { return nil }
func (NopSink) RecordAssignment(AssignmentEvent) error        { return nil }
func (NopSink) RecordFleetSize(int) error                     { return nil }

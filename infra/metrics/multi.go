package metrics

import coremetrics "github.com/carelink/dispatchd/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatchOutcome forwards the outcomes to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordDispatchOutcome(outcomes []coremetrics.DispatchOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatchOutcome(outcomes); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignment forwards allocation attempts to the sinks that track them.
func (m *MultiSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.AssignmentRecorder); ok {
			if err := rec.RecordAssignment(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards the fleet gauge when supported by the sink.
func (m *MultiSink) RecordFleetSize(size int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.FleetSizeRecorder); ok {
			if err := rec.RecordFleetSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}

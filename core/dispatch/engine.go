// Package dispatch implements the allocation engine: the single component
// allowed to mutate the ambulance-dispatch-alert triangle. Every mutation is
// all-or-nothing under one lock, so an ambulance is never en_route without a
// live dispatch and no two dispatches ever hold the same resource.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/dispatchd/core/events"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/logger"
	coremetrics "github.com/carelink/dispatchd/core/metrics"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/core/queue"
	"github.com/carelink/dispatchd/infra/history"
	"github.com/carelink/dispatchd/internal/eventbus"
)

// Fleet is the slice of the registry the engine needs: reads plus the
// status-write surface no other component receives.
type Fleet interface {
	Get(id string) (model.Ambulance, error)
	SetStatus(id string, status model.AmbulanceStatus) error
	TransitionStatus(id string, from, to model.AmbulanceStatus) error
	SetLocation(id string, p model.GeoPoint, ts time.Time) error
	AvailableCount() int
}

// Engine owns dispatch records and serializes every allocation and release.
type Engine struct {
	queue   *queue.Queue
	fleet   Fleet
	bus     eventbus.EventBus
	store   history.Store
	sink    coremetrics.Sink
	log     logger.Logger
	avgKmh  float64
	now     func() time.Time

	// mu serializes allocation and release so each operation is atomic
	// across queue, fleet and the dispatch maps. idxMu is a leaf lock
	// guarding only the maps; InUse takes it alone, which keeps the
	// registry free to consult ownership while holding its own lock.
	mu          sync.Mutex
	idxMu       sync.Mutex
	dispatches  map[string]model.Dispatch
	byAmbulance map[string]string // ambulance id -> active dispatch id
	byAlert     map[string]string // alert id -> active dispatch id
}

// New creates an Engine. bus, store and sink may be nil; the corresponding
// side effects are skipped.
func New(q *queue.Queue, fleet Fleet, cfg Config, bus eventbus.EventBus, store history.Store, sink coremetrics.Sink, log logger.Logger) (*Engine, error) {
	if q == nil || fleet == nil {
		return nil, fmt.Errorf("dispatch: nil queue or fleet provided to New")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Engine{
		queue:       q,
		fleet:       fleet,
		bus:         bus,
		store:       store,
		sink:        sink,
		log:         log,
		avgKmh:      cfg.AverageSpeedKmh,
		now:         time.Now,
		dispatches:  make(map[string]model.Dispatch),
		byAmbulance: make(map[string]string),
		byAlert:     make(map[string]string),
	}, nil
}

// InUse reports whether a non-terminal dispatch holds the ambulance. It
// implements registry.ReferenceChecker and must stay callable from inside
// the registry lock, so it only touches the leaf index lock.
func (e *Engine) InUse(ambulanceID string) bool {
	e.idxMu.Lock()
	defer e.idxMu.Unlock()
	_, held := e.byAmbulance[ambulanceID]
	return held
}

// GetDispatch returns a copy of the dispatch record.
func (e *Engine) GetDispatch(id string) (model.Dispatch, error) {
	e.idxMu.Lock()
	defer e.idxMu.Unlock()
	d, ok := e.dispatches[id]
	if !ok {
		return model.Dispatch{}, faults.NotFound("dispatch", id)
	}
	return d, nil
}

// ActiveDispatchForAlert returns the non-terminal dispatch serving the alert.
func (e *Engine) ActiveDispatchForAlert(alertID string) (model.Dispatch, bool) {
	e.idxMu.Lock()
	defer e.idxMu.Unlock()
	id, ok := e.byAlert[alertID]
	if !ok {
		return model.Dispatch{}, false
	}
	return e.dispatches[id], true
}

// storeDispatch writes the record under the index lock. Callers hold e.mu.
func (e *Engine) storeDispatch(d model.Dispatch) {
	e.idxMu.Lock()
	e.dispatches[d.ID] = d
	e.idxMu.Unlock()
}

// Trigger registers a new alert and fans the emergency_alert event out to the
// coordinator room.
func (e *Engine) Trigger(alert model.EmergencyAlert) (model.EmergencyAlert, error) {
	created, err := e.queue.Trigger(alert)
	if err != nil {
		return model.EmergencyAlert{}, err
	}
	emergenciesTotal.WithLabelValues(string(created.Priority), created.AlertType).Inc()
	e.publish(events.AlertTriggered{
		AlertID:   created.ID,
		ElderID:   created.ElderID,
		ElderName: created.ElderName,
		Priority:  created.Priority,
		Location:  created.Location,
		At:        created.CreatedAt,
	})
	return created, nil
}

// Acknowledge marks the alert as taken by a coordinator.
func (e *Engine) Acknowledge(alertID, coordinatorID string) (model.EmergencyAlert, error) {
	return e.queue.Acknowledge(alertID, coordinatorID)
}

// Assign allocates an ambulance to an emergency exactly once. The ambulance
// gate is a conditional available->en_route transition, so of two racing
// assigns exactly one wins and the loser observes a conflict.
func (e *Engine) Assign(alertID, ambulanceID, coordinatorID, hospital string) (model.Dispatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.queue.Get(alertID)
	if err != nil {
		return model.Dispatch{}, err
	}
	switch alert.Status {
	case model.AlertPending, model.AlertAcknowledged:
	default:
		e.recordAssignment(alertID, ambulanceID, false, "invalid_state")
		return model.Dispatch{}, faults.InvalidState("dispatch", string(alert.Status))
	}
	if _, held := e.byAlert[alertID]; held {
		e.recordAssignment(alertID, ambulanceID, false, "conflict")
		return model.Dispatch{}, faults.Conflict("emergency %s already has an active dispatch", alertID)
	}

	amb, err := e.fleet.Get(ambulanceID)
	if err != nil {
		return model.Dispatch{}, err
	}
	if !amb.Active {
		e.recordAssignment(alertID, ambulanceID, false, "conflict")
		return model.Dispatch{}, faults.Conflict("ambulance no longer available")
	}
	// The conditional transition is the allocation gate.
	if err := e.fleet.TransitionStatus(ambulanceID, model.AmbulanceAvailable, model.AmbulanceEnRoute); err != nil {
		if faults.IsConflict(err) {
			e.recordAssignment(alertID, ambulanceID, false, "conflict")
			return model.Dispatch{}, faults.Conflict("ambulance no longer available")
		}
		return model.Dispatch{}, err
	}

	if alert.Status == model.AlertPending {
		if alert, err = e.queue.Acknowledge(alertID, coordinatorID); err != nil {
			e.rollbackAmbulance(ambulanceID)
			return model.Dispatch{}, err
		}
	}
	if alert, err = e.queue.Advance(alertID, model.AlertDispatched); err != nil {
		e.rollbackAmbulance(ambulanceID)
		return model.Dispatch{}, err
	}

	now := e.now()
	d := model.Dispatch{
		ID:          uuid.NewString(),
		AlertID:     alertID,
		AmbulanceID: ambulanceID,
		DriverID:    amb.DriverID,
		Status:      model.DispatchAssigned,
		Hospital:    hospital,
		AssignedAt:  now,
	}
	if alert.Location.Valid() && amb.Location.Valid() {
		dist := alert.Location.DistanceKm(amb.Location.GeoPoint)
		eta := dist / e.avgKmh * 60
		d.DistanceKm = &dist
		d.ETAMinutes = &eta
	}
	e.idxMu.Lock()
	e.dispatches[d.ID] = d
	e.byAmbulance[ambulanceID] = d.ID
	e.byAlert[alertID] = d.ID
	e.idxMu.Unlock()

	e.recordAssignment(alertID, ambulanceID, true, "assigned")
	e.logf("dispatch %s: ambulance %s assigned to alert %s", d.ID, ambulanceID, alertID)
	e.publish(events.DispatchAssigned{
		DispatchID:  d.ID,
		AlertID:     alertID,
		AmbulanceID: ambulanceID,
		DriverID:    d.DriverID,
		ElderID:     alert.ElderID,
		Hospital:    hospital,
		DistanceKm:  d.DistanceKm,
		ETAMinutes:  d.ETAMinutes,
		At:          now,
	})
	return d, nil
}

// Cancel closes the alert from any non-terminal state and synchronously
// releases a held ambulance before returning, so a subsequent assign
// immediately sees it as available.
func (e *Engine) Cancel(alertID, reason string) (model.EmergencyAlert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.queue.Cancel(alertID, reason)
	if err != nil {
		return model.EmergencyAlert{}, err
	}
	var released model.Dispatch
	if id, held := e.byAlert[alertID]; held {
		released = e.terminate(e.dispatches[id], model.DispatchCancelled)
	}
	outcomesTotal.WithLabelValues("cancelled").Inc()
	e.appendHistory(alert, released, "cancelled", reason)
	e.publish(events.EmergencyCompleted{
		DispatchID:  released.ID,
		AlertID:     alertID,
		AmbulanceID: released.AmbulanceID,
		ElderID:     alert.ElderID,
		Cancelled:   true,
		Reason:      reason,
		At:          e.now(),
	})
	return alert, nil
}

// Release cancels the dispatch and its alert. It exists for callers that
// hold a dispatch id rather than an alert id; semantics match Cancel.
func (e *Engine) Release(dispatchID, reason string) error {
	e.mu.Lock()
	d, ok := e.dispatches[dispatchID]
	e.mu.Unlock()
	if !ok {
		return faults.NotFound("dispatch", dispatchID)
	}
	if d.Status.Terminal() {
		return faults.InvalidState("release", string(d.Status))
	}
	_, err := e.Cancel(d.AlertID, reason)
	return err
}

// Accept records the driver taking the assignment and moves the response to
// en_route.
func (e *Engine) Accept(dispatchID, driverID string) (model.Dispatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.ownedDispatch(dispatchID, driverID)
	if err != nil {
		return model.Dispatch{}, err
	}
	if d.Status != model.DispatchAssigned {
		return model.Dispatch{}, faults.InvalidState("accept", string(d.Status))
	}
	alert, err := e.queue.Advance(d.AlertID, model.AlertEnRoute)
	if err != nil {
		return model.Dispatch{}, err
	}
	now := e.now()
	d.Status = model.DispatchEnRoute
	d.EnRouteAt = &now
	if d.DriverID == "" {
		d.DriverID = driverID
	}
	e.storeDispatch(d)
	e.publish(events.DispatchStatusChanged{
		DispatchID:  dispatchID,
		AlertID:     d.AlertID,
		AmbulanceID: d.AmbulanceID,
		ElderID:     alert.ElderID,
		Status:      d.Status,
		At:          now,
	})
	return d, nil
}

// ReportLocation stores a position report from the dispatched ambulance and
// fans it out to the family and coordinator rooms.
func (e *Engine) ReportLocation(dispatchID, driverID string, p model.GeoPoint) (model.Dispatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.ownedDispatch(dispatchID, driverID)
	if err != nil {
		return model.Dispatch{}, err
	}
	if d.Status.Terminal() {
		return model.Dispatch{}, faults.InvalidState("location", string(d.Status))
	}
	if !p.Valid() {
		return model.Dispatch{}, faults.Validation("location requires valid coordinates")
	}
	now := e.now()
	if err := e.fleet.SetLocation(d.AmbulanceID, p, now); err != nil {
		return model.Dispatch{}, err
	}
	alert, err := e.queue.Get(d.AlertID)
	if err != nil {
		return model.Dispatch{}, err
	}
	e.publish(events.LocationUpdated{
		DispatchID:  dispatchID,
		AlertID:     d.AlertID,
		AmbulanceID: d.AmbulanceID,
		ElderID:     alert.ElderID,
		Location:    p,
		At:          now,
	})
	return d, nil
}

// MarkArrived records arrival on scene. The ambulance flips to busy while
// care is being delivered.
func (e *Engine) MarkArrived(dispatchID, driverID string) (model.Dispatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.ownedDispatch(dispatchID, driverID)
	if err != nil {
		return model.Dispatch{}, err
	}
	if d.Status != model.DispatchEnRoute {
		return model.Dispatch{}, faults.InvalidState("arrived", string(d.Status))
	}
	alert, err := e.queue.Advance(d.AlertID, model.AlertArrived)
	if err != nil {
		return model.Dispatch{}, err
	}
	now := e.now()
	d.Status = model.DispatchArrived
	d.ArrivedAt = &now
	e.storeDispatch(d)
	if err := e.fleet.SetStatus(d.AmbulanceID, model.AmbulanceBusy); err != nil {
		e.logf("ambulance %s status update failed: %v", d.AmbulanceID, err)
	}
	if alert.AcknowledgedAt != nil {
		responseSeconds.Observe(now.Sub(*alert.AcknowledgedAt).Seconds())
	}
	e.publish(events.AmbulanceArrived{
		DispatchID:  dispatchID,
		AlertID:     d.AlertID,
		AmbulanceID: d.AmbulanceID,
		ElderID:     alert.ElderID,
		At:          now,
	})
	return d, nil
}

// Complete finishes the response: the alert closes, the dispatch becomes
// terminal and the ambulance reverts to available.
func (e *Engine) Complete(dispatchID, driverID string) (model.Dispatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.ownedDispatch(dispatchID, driverID)
	if err != nil {
		return model.Dispatch{}, err
	}
	if d.Status != model.DispatchArrived {
		return model.Dispatch{}, faults.InvalidState("complete", string(d.Status))
	}
	alert, err := e.queue.Advance(d.AlertID, model.AlertCompleted)
	if err != nil {
		return model.Dispatch{}, err
	}
	d = e.terminate(d, model.DispatchCompleted)
	outcomesTotal.WithLabelValues("completed").Inc()
	e.appendHistory(alert, d, "completed", "")
	e.logf("dispatch %s completed, ambulance %s released", dispatchID, d.AmbulanceID)
	e.publish(events.EmergencyCompleted{
		DispatchID:  dispatchID,
		AlertID:     d.AlertID,
		AmbulanceID: d.AmbulanceID,
		ElderID:     alert.ElderID,
		At:          e.now(),
	})
	return d, nil
}

// ownedDispatch validates the dispatch exists and is held by the calling
// driver's ambulance. Callers hold e.mu.
func (e *Engine) ownedDispatch(dispatchID, driverID string) (model.Dispatch, error) {
	d, ok := e.dispatches[dispatchID]
	if !ok {
		return model.Dispatch{}, faults.NotFound("dispatch", dispatchID)
	}
	if driverID == "" {
		return model.Dispatch{}, faults.Validation("driver id is required")
	}
	if d.DriverID != "" && d.DriverID != driverID {
		amb, err := e.fleet.Get(d.AmbulanceID)
		if err != nil || amb.DriverID != driverID {
			return model.Dispatch{}, faults.Conflict("dispatch %s is not held by driver %s", dispatchID, driverID)
		}
	}
	return d, nil
}

// terminate marks the dispatch terminal and releases its ambulance. Callers
// hold e.mu.
func (e *Engine) terminate(d model.Dispatch, status model.DispatchStatus) model.Dispatch {
	now := e.now()
	d.Status = status
	switch status {
	case model.DispatchCompleted:
		d.CompletedAt = &now
	case model.DispatchCancelled:
		d.CancelledAt = &now
	}
	e.idxMu.Lock()
	e.dispatches[d.ID] = d
	delete(e.byAmbulance, d.AmbulanceID)
	delete(e.byAlert, d.AlertID)
	e.idxMu.Unlock()
	if d.AmbulanceID != "" {
		if err := e.fleet.SetStatus(d.AmbulanceID, model.AmbulanceAvailable); err != nil {
			e.logf("ambulance %s release failed: %v", d.AmbulanceID, err)
		}
	}
	return d
}

// rollbackAmbulance undoes the allocation gate after a later step failed.
// Callers hold e.mu.
func (e *Engine) rollbackAmbulance(ambulanceID string) {
	if err := e.fleet.SetStatus(ambulanceID, model.AmbulanceAvailable); err != nil {
		e.logf("ambulance %s rollback failed: %v", ambulanceID, err)
	}
}

// appendHistory persists the terminal outcome and feeds the metric sinks.
// Failures are logged and swallowed: history is derived data. Callers hold
// e.mu.
func (e *Engine) appendHistory(alert model.EmergencyAlert, d model.Dispatch, outcome, reason string) {
	closed := e.now()
	if alert.ClosedAt != nil {
		closed = *alert.ClosedAt
	}
	rec := history.Record{
		AlertID:        alert.ID,
		AlertType:      alert.AlertType,
		Priority:       alert.Priority,
		AmbulanceID:    d.AmbulanceID,
		DriverID:       d.DriverID,
		DistanceKm:     d.DistanceKm,
		Outcome:        outcome,
		Reason:         reason,
		CreatedAt:      alert.CreatedAt,
		AcknowledgedAt: alert.AcknowledgedAt,
		ArrivedAt:      d.ArrivedAt,
		ClosedAt:       closed,
	}
	if !d.AssignedAt.IsZero() {
		assigned := d.AssignedAt
		rec.AssignedAt = &assigned
	}
	if e.store != nil {
		if err := e.store.Append(context.Background(), rec); err != nil {
			e.logf("history append failed for alert %s: %v", alert.ID, err)
		}
	}
	out := coremetrics.DispatchOutcome{
		AlertID:     alert.ID,
		AlertType:   alert.AlertType,
		Priority:    alert.Priority,
		AmbulanceID: d.AmbulanceID,
		Outcome:     outcome,
		Time:        closed,
	}
	if d.DistanceKm != nil {
		out.DistanceKm = *d.DistanceKm
	}
	if sec, ok := rec.ResponseSeconds(); ok {
		out.ResponseSeconds = sec
	}
	if err := e.sink.RecordDispatchOutcome([]coremetrics.DispatchOutcome{out}); err != nil {
		e.logf("metrics error: %v", err)
	}
}

// recordAssignment updates the allocation counters. Callers hold e.mu.
func (e *Engine) recordAssignment(alertID, ambulanceID string, won bool, outcome string) {
	assignmentsTotal.WithLabelValues(outcome).Inc()
	if rec, ok := e.sink.(coremetrics.AssignmentRecorder); ok {
		if err := rec.RecordAssignment(coremetrics.AssignmentEvent{
			AlertID:     alertID,
			AmbulanceID: ambulanceID,
			Won:         won,
			Reason:      outcome,
			Time:        e.now(),
		}); err != nil {
			e.logf("metrics error: %v", err)
		}
	}
	availableAmbulances.Set(float64(e.fleet.AvailableCount()))
}

// publish emits the event without ever failing the mutating call.
func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.log != nil {
		e.log.Infof(format, args...)
	}
}

// Package queue implements the emergency alert lifecycle state machine.
// Transitions follow the fixed order pending, acknowledged, dispatched,
// en_route, arrived, completed; cancellation is reachable from any
// non-terminal state. Terminal alerts are immutable.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/logger"
	"github.com/carelink/dispatchd/core/model"
)

// Queue stores alerts and enforces their lifecycle.
type Queue struct {
	mu     sync.RWMutex
	alerts map[string]model.EmergencyAlert
	log    logger.Logger
	now    func() time.Time
}

// New creates an empty Queue.
func New(log logger.Logger) *Queue {
	return &Queue{
		alerts: make(map[string]model.EmergencyAlert),
		log:    log,
		now:    time.Now,
	}
}

// Trigger registers a new alert in pending state.
func (q *Queue) Trigger(alert model.EmergencyAlert) (model.EmergencyAlert, error) {
	if err := alert.Validate(); err != nil {
		return model.EmergencyAlert{}, faults.Validation("%v", err)
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.Status = model.AlertPending
	alert.Version = 1
	alert.CreatedAt = q.now()
	alert.ClosedAt = nil
	alert.AcknowledgedAt = nil
	alert.CoordinatorID = ""

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.alerts[alert.ID]; exists {
		return model.EmergencyAlert{}, faults.Conflict("alert %s already exists", alert.ID)
	}
	q.alerts[alert.ID] = alert
	q.log.Infof("alert %s triggered (%s, priority %s)", alert.ID, alert.AlertType, alert.Priority)
	return alert, nil
}

// Acknowledge moves a pending alert to acknowledged and records the
// coordinator. Re-acknowledging by the same coordinator is a no-op; a
// different coordinator loses the optimistic check and gets a conflict.
func (q *Queue) Acknowledge(id, coordinatorID string) (model.EmergencyAlert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.alerts[id]
	if !ok {
		return model.EmergencyAlert{}, faults.NotFound("alert", id)
	}
	if a.Status == model.AlertAcknowledged {
		if a.CoordinatorID == coordinatorID {
			return a, nil
		}
		return model.EmergencyAlert{}, faults.Conflict("alert %s already acknowledged by %s", id, a.CoordinatorID)
	}
	if a.Status != model.AlertPending {
		return model.EmergencyAlert{}, faults.InvalidState("acknowledge", string(a.Status))
	}
	a.Status = model.AlertAcknowledged
	a.CoordinatorID = coordinatorID
	ts := q.now()
	a.AcknowledgedAt = &ts
	a.Version++
	q.alerts[id] = a
	q.log.Infof("alert %s acknowledged by %s", id, coordinatorID)
	return a, nil
}

// Advance moves the alert to its immediate successor state. Used by the
// dispatch engine; the total order is enforced here in one place.
func (q *Queue) Advance(id string, next model.AlertStatus) (model.EmergencyAlert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.alerts[id]
	if !ok {
		return model.EmergencyAlert{}, faults.NotFound("alert", id)
	}
	if !a.Status.CanAdvance(next) {
		return model.EmergencyAlert{}, faults.InvalidState(string(next), string(a.Status))
	}
	a.Status = next
	a.Version++
	if next == model.AlertCompleted {
		ts := q.now()
		a.ClosedAt = &ts
	}
	q.alerts[id] = a
	return a, nil
}

// Cancel closes the alert from any non-terminal state. Releasing a held
// dispatch is the engine's job; the queue only records the transition.
func (q *Queue) Cancel(id, reason string) (model.EmergencyAlert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.alerts[id]
	if !ok {
		return model.EmergencyAlert{}, faults.NotFound("alert", id)
	}
	if a.Status.Terminal() {
		return model.EmergencyAlert{}, faults.InvalidState("cancel", string(a.Status))
	}
	a.Status = model.AlertCancelled
	a.CancelReason = reason
	a.Version++
	ts := q.now()
	a.ClosedAt = &ts
	q.alerts[id] = a
	q.log.Infof("alert %s cancelled: %s", id, reason)
	return a, nil
}

// Get returns a copy of the alert.
func (q *Queue) Get(id string) (model.EmergencyAlert, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	a, ok := q.alerts[id]
	if !ok {
		return model.EmergencyAlert{}, faults.NotFound("alert", id)
	}
	return a, nil
}

// List returns the open alerts ordered by priority (urgent first) then age
// (oldest first). Terminal alerts are included only when includeClosed is set.
func (q *Queue) List(includeClosed bool) []model.EmergencyAlert {
	q.mu.RLock()
	defer q.mu.RUnlock()
	res := make([]model.EmergencyAlert, 0, len(q.alerts))
	for _, a := range q.alerts {
		if !includeClosed && a.Status.Terminal() {
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Priority.Rank() != res[j].Priority.Rank() {
			return res[i].Priority.Rank() > res[j].Priority.Rank()
		}
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

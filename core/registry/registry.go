// Package registry holds the authoritative state of the ambulance fleet.
// All other components read through it; status writes are restricted to the
// dispatch engine and the explicit maintenance toggles.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/logger"
	"github.com/carelink/dispatchd/core/model"
)

// Filter restricts List results.
type Filter struct {
	Status     model.AmbulanceStatus
	Class      model.AmbulanceClass
	ActiveOnly bool
}

// Reader is the read-only view handed to ranking and reporting code.
type Reader interface {
	Get(id string) (model.Ambulance, error)
	List(Filter) []model.Ambulance
}

// StatusWriter is the narrow mutation surface handed to the dispatch engine.
// No other component may flip ambulance status directly.
type StatusWriter interface {
	SetStatus(id string, status model.AmbulanceStatus) error
}

// ReferenceChecker reports whether a non-terminal dispatch currently holds
// the ambulance. The dispatch engine provides the implementation.
type ReferenceChecker interface {
	InUse(ambulanceID string) bool
}

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	VehicleNumber *string
	LicensePlate  *string
	Class         *model.AmbulanceClass
	Capacity      *int
	Equipment     *[]string
	BaseStation   *string
	DriverID      *string
	Active        *bool
}

// Registry is an in-memory fleet store guarded by a RWMutex.
type Registry struct {
	mu       sync.RWMutex
	data     map[string]model.Ambulance
	byNumber map[string]string
	refs     ReferenceChecker
	log      logger.Logger
}

// New creates an empty Registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		data:     make(map[string]model.Ambulance),
		byNumber: make(map[string]string),
		log:      log,
	}
}

// SetReferenceChecker wires the dispatch engine's ownership index. Must be
// called during service assembly, before traffic.
func (r *Registry) SetReferenceChecker(refs ReferenceChecker) {
	r.mu.Lock()
	r.refs = refs
	r.mu.Unlock()
}

// Create validates and registers a new ambulance. A missing ID is generated;
// a missing status defaults to available.
func (r *Registry) Create(spec model.Ambulance) (model.Ambulance, error) {
	if err := spec.Validate(); err != nil {
		return model.Ambulance{}, faults.Validation("%v", err)
	}
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	if spec.Status == "" {
		spec.Status = model.AmbulanceAvailable
	}
	if _, ok := model.ParseAmbulanceStatus(string(spec.Status)); !ok {
		return model.Ambulance{}, faults.Validation("unknown status %q", spec.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[spec.ID]; exists {
		return model.Ambulance{}, faults.Conflict("ambulance %s already registered", spec.ID)
	}
	if other, exists := r.byNumber[spec.VehicleNumber]; exists {
		return model.Ambulance{}, faults.Conflict("vehicle number %s already registered as %s", spec.VehicleNumber, other)
	}
	r.data[spec.ID] = spec
	r.byNumber[spec.VehicleNumber] = spec.ID
	r.log.Infof("registered ambulance %s (%s)", spec.ID, spec.VehicleNumber)
	return spec, nil
}

// Get returns a copy of the ambulance record.
func (r *Registry) Get(id string) (model.Ambulance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[id]
	if !ok {
		return model.Ambulance{}, faults.NotFound("ambulance", id)
	}
	return a, nil
}

// List returns matching ambulances sorted by ID.
func (r *Registry) List(f Filter) []model.Ambulance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Ambulance, 0, len(r.data))
	for _, a := range r.data {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Class != "" && a.Class != f.Class {
			continue
		}
		if f.ActiveOnly && !a.Active {
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Update applies the non-nil fields of patch.
func (r *Registry) Update(id string, p Patch) (model.Ambulance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return model.Ambulance{}, faults.NotFound("ambulance", id)
	}
	updated := a
	if p.VehicleNumber != nil {
		updated.VehicleNumber = *p.VehicleNumber
	}
	if p.LicensePlate != nil {
		updated.LicensePlate = *p.LicensePlate
	}
	if p.Class != nil {
		updated.Class = *p.Class
	}
	if p.Capacity != nil {
		updated.Capacity = *p.Capacity
	}
	if p.Equipment != nil {
		updated.Equipment = *p.Equipment
	}
	if p.BaseStation != nil {
		updated.BaseStation = *p.BaseStation
	}
	if p.DriverID != nil {
		updated.DriverID = *p.DriverID
	}
	if p.Active != nil {
		updated.Active = *p.Active
	}
	if err := updated.Validate(); err != nil {
		return model.Ambulance{}, faults.Validation("%v", err)
	}
	if updated.VehicleNumber != a.VehicleNumber {
		if other, exists := r.byNumber[updated.VehicleNumber]; exists && other != id {
			return model.Ambulance{}, faults.Conflict("vehicle number %s already registered as %s", updated.VehicleNumber, other)
		}
		delete(r.byNumber, a.VehicleNumber)
		r.byNumber[updated.VehicleNumber] = id
	}
	r.data[id] = updated
	return updated, nil
}

// Delete removes the ambulance. It fails while a non-terminal dispatch still
// references the vehicle.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return faults.NotFound("ambulance", id)
	}
	if a.Status.Responding() || (r.refs != nil && r.refs.InUse(id)) {
		return faults.Conflict("ambulance %s is referenced by an active dispatch", id)
	}
	delete(r.data, id)
	delete(r.byNumber, a.VehicleNumber)
	r.log.Infof("deleted ambulance %s (%s)", id, a.VehicleNumber)
	return nil
}

// SetLocation records a position report. Timestamps must be monotonically
// non-decreasing per vehicle; stale reports are dropped without error since
// GPS feeds routinely deliver out of order.
func (r *Registry) SetLocation(id string, p model.GeoPoint, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return faults.NotFound("ambulance", id)
	}
	if ts.Before(a.Location.RecordedAt) {
		r.log.Debugf("stale location for %s (%s < %s), ignored", id, ts.Format(time.RFC3339), a.Location.RecordedAt.Format(time.RFC3339))
		return nil
	}
	a.Location = model.Location{GeoPoint: p, RecordedAt: ts}
	r.data[id] = a
	return nil
}

// SetStatus performs an unconditional status write. Reserved for the dispatch
// engine via the StatusWriter interface.
func (r *Registry) SetStatus(id string, status model.AmbulanceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return faults.NotFound("ambulance", id)
	}
	a.Status = status
	r.data[id] = a
	return nil
}

// TransitionStatus is a conditional check-then-set under the registry lock.
// It fails with a conflict when the current status is not from, which makes
// it the allocation gate: two racing assigns on one ambulance cannot both
// observe available.
func (r *Registry) TransitionStatus(id string, from, to model.AmbulanceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return faults.NotFound("ambulance", id)
	}
	if a.Status != from {
		return faults.Conflict("ambulance %s is %s, not %s", id, a.Status, from)
	}
	a.Status = to
	r.data[id] = a
	return nil
}

// SetServiceStatus is the operator-facing toggle between available,
// maintenance and offline. It refuses dispatch-owned states and any change
// while a live dispatch holds the vehicle.
func (r *Registry) SetServiceStatus(id string, status model.AmbulanceStatus) error {
	switch status {
	case model.AmbulanceAvailable, model.AmbulanceMaintenance, model.AmbulanceOffline:
	default:
		return faults.Validation("status %s can only be set by the dispatch engine", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return faults.NotFound("ambulance", id)
	}
	if a.Status.Responding() || (r.refs != nil && r.refs.InUse(id)) {
		return faults.Conflict("ambulance %s is referenced by an active dispatch", id)
	}
	a.Status = status
	r.data[id] = a
	r.log.Infof("ambulance %s status set to %s", id, status)
	return nil
}

// AvailableCount returns the number of dispatchable ambulances.
func (r *Registry) AvailableCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.data {
		if a.Dispatchable() {
			n++
		}
	}
	return n
}

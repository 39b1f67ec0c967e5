package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carelink/dispatchd/core/events"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/core/queue"
	"github.com/carelink/dispatchd/core/registry"
	"github.com/carelink/dispatchd/infra/history"
	"github.com/carelink/dispatchd/infra/logger"
	"github.com/carelink/dispatchd/internal/eventbus"
)

type memStore struct {
	mu   sync.Mutex
	recs []history.Record
}

func (s *memStore) Append(_ context.Context, rec history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) Query(_ context.Context, w history.Window) ([]history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []history.Record
	for _, r := range s.recs {
		if w.Contains(r.ClosedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

type memBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *memBus) Publish(e eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *memBus) Subscribe() <-chan eventbus.Event { return nil }
func (b *memBus) Unsubscribe(<-chan eventbus.Event) {}
func (b *memBus) Close()                            {}

func (b *memBus) ofType(match func(eventbus.Event) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if match(e) {
			n++
		}
	}
	return n
}

type harness struct {
	engine *Engine
	fleet  *registry.Registry
	queue  *queue.Queue
	store  *memStore
	bus    *memBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ResetMetrics()
	fleet := registry.New(logger.NopLogger{})
	q := queue.New(logger.NopLogger{})
	store := &memStore{}
	bus := &memBus{}
	eng, err := New(q, fleet, Config{}, bus, store, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fleet.SetReferenceChecker(eng)
	return &harness{engine: eng, fleet: fleet, queue: q, store: store, bus: bus}
}

func (h *harness) ambulance(t *testing.T, num string, loc model.GeoPoint) model.Ambulance {
	t.Helper()
	a, err := h.fleet.Create(model.Ambulance{
		VehicleNumber: num,
		LicensePlate:  "WP-" + num,
		Class:         model.ClassAdvanced,
		Capacity:      2,
		DriverID:      "drv-" + num,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("create ambulance: %v", err)
	}
	if loc.Valid() {
		if err := h.fleet.SetLocation(a.ID, loc, time.Now()); err != nil {
			t.Fatalf("set location: %v", err)
		}
		a, _ = h.fleet.Get(a.ID)
	}
	return a
}

func (h *harness) alert(t *testing.T, elder string) model.EmergencyAlert {
	t.Helper()
	a, err := h.engine.Trigger(model.EmergencyAlert{
		ElderID:   elder,
		ElderName: "Elder " + elder,
		AlertType: "fall_detection",
		Priority:  model.PriorityCritical,
		Location:  model.GeoPoint{Lat: 6.9271, Lng: 79.8612},
	})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	return a
}

func TestAssignHappyPath(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{Lat: 6.9, Lng: 79.87})
	alert := h.alert(t, "elder-1")

	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "National Hospital")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if d.Status != model.DispatchAssigned {
		t.Fatalf("dispatch status = %s, want assigned", d.Status)
	}
	if d.DistanceKm == nil || d.ETAMinutes == nil {
		t.Fatal("expected distance and ETA with both locations known")
	}
	defaults := Config{}
	defaults.SetDefaults()
	wantETA := *d.DistanceKm / defaults.AverageSpeedKmh * 60
	if diff := *d.ETAMinutes - wantETA; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("eta = %v, want %v", *d.ETAMinutes, wantETA)
	}

	got, err := h.queue.Get(alert.ID)
	if err != nil {
		t.Fatalf("queue get: %v", err)
	}
	if got.Status != model.AlertDispatched {
		t.Fatalf("alert status = %s, want dispatched", got.Status)
	}
	if got.CoordinatorID != "coord-1" || got.AcknowledgedAt == nil {
		t.Fatal("pending alert should be auto-acknowledged by the assigning coordinator")
	}

	fa, _ := h.fleet.Get(amb.ID)
	if fa.Status != model.AmbulanceEnRoute {
		t.Fatalf("ambulance status = %s, want en_route", fa.Status)
	}
	if !h.engine.InUse(amb.ID) {
		t.Fatal("InUse should report the held ambulance")
	}
	if n := h.bus.ofType(func(e eventbus.Event) bool { _, ok := e.(events.DispatchAssigned); return ok }); n != 1 {
		t.Fatalf("dispatch_assigned events = %d, want 1", n)
	}
}

func TestAssignConcurrentSameAmbulance(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{Lat: 6.9, Lng: 79.87})
	a1 := h.alert(t, "elder-1")
	a2 := h.alert(t, "elder-2")

	errs := make(chan error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, alertID := range []string{a1.ID, a2.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			_, err := h.engine.Assign(id, amb.ID, "coord-1", "")
			errs <- err
		}(alertID)
	}
	close(start)
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case faults.IsConflict(err):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 of each", ok, conflict)
	}
}

func TestAssignAmbulanceNotAvailable(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{})
	alert := h.alert(t, "elder-1")

	if err := h.fleet.SetStatus(amb.ID, model.AmbulanceBusy); err != nil {
		t.Fatalf("set status: %v", err)
	}
	_, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "")
	if !faults.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAssignAlertNotOpen(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{})
	amb2 := h.ambulance(t, "AMB-02", model.GeoPoint{})
	alert := h.alert(t, "elder-1")

	if _, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", ""); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// the alert is already dispatched; this is a lifecycle violation, not a
	// lost race, so the state machine answers before the dispatch index
	_, err := h.engine.Assign(alert.ID, amb2.ID, "coord-1", "")
	if !faults.IsInvalidState(err) {
		t.Fatalf("second assign err = %v, want invalid state", err)
	}

	cancelled := h.alert(t, "elder-2")
	if _, err := h.engine.Cancel(cancelled.ID, "false alarm"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = h.engine.Assign(cancelled.ID, amb2.ID, "coord-1", "")
	if !faults.IsInvalidState(err) {
		t.Fatalf("assign to cancelled alert err = %v, want invalid state", err)
	}
	// failed attempts must not leak the ambulance
	fa, _ := h.fleet.Get(amb2.ID)
	if fa.Status != model.AmbulanceAvailable {
		t.Fatalf("ambulance status = %s, want available after failed assigns", fa.Status)
	}
}

func TestCancelReleasesAmbulance(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{Lat: 6.9, Lng: 79.87})
	alert := h.alert(t, "elder-1")

	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := h.engine.Cancel(alert.ID, "resolved by family")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != model.AlertCancelled || got.CancelReason != "resolved by family" {
		t.Fatalf("alert = %s/%q, want cancelled/reason", got.Status, got.CancelReason)
	}

	fa, _ := h.fleet.Get(amb.ID)
	if fa.Status != model.AmbulanceAvailable {
		t.Fatalf("ambulance status = %s, want available after cancel", fa.Status)
	}
	if h.engine.InUse(amb.ID) {
		t.Fatal("InUse should clear after cancel")
	}
	dd, err := h.engine.GetDispatch(d.ID)
	if err != nil {
		t.Fatalf("get dispatch: %v", err)
	}
	if dd.Status != model.DispatchCancelled || dd.CancelledAt == nil {
		t.Fatalf("dispatch = %s, want cancelled with timestamp", dd.Status)
	}

	recs, _ := h.store.Query(context.Background(), history.Window{})
	if len(recs) != 1 || recs[0].Outcome != "cancelled" || recs[0].Reason != "resolved by family" {
		t.Fatalf("history = %+v, want one cancelled record", recs)
	}

	// the released ambulance is immediately assignable again
	next := h.alert(t, "elder-2")
	if _, err := h.engine.Assign(next.ID, amb.ID, "coord-1", ""); err != nil {
		t.Fatalf("re-assign after cancel: %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{Lat: 6.9, Lng: 79.87})
	alert := h.alert(t, "elder-1")

	if _, err := h.engine.Acknowledge(alert.ID, "coord-1"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "National Hospital")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if d, err = h.engine.Accept(d.ID, amb.DriverID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if d.Status != model.DispatchEnRoute || d.EnRouteAt == nil {
		t.Fatalf("dispatch = %s, want en_route", d.Status)
	}

	if _, err = h.engine.ReportLocation(d.ID, amb.DriverID, model.GeoPoint{Lat: 6.91, Lng: 79.86}); err != nil {
		t.Fatalf("report location: %v", err)
	}
	fa, _ := h.fleet.Get(amb.ID)
	if fa.Location.Lat != 6.91 {
		t.Fatalf("registry location = %v, want update applied", fa.Location.GeoPoint)
	}

	if d, err = h.engine.MarkArrived(d.ID, amb.DriverID); err != nil {
		t.Fatalf("arrived: %v", err)
	}
	fa, _ = h.fleet.Get(amb.ID)
	if fa.Status != model.AmbulanceBusy {
		t.Fatalf("ambulance status = %s, want busy on scene", fa.Status)
	}

	if d, err = h.engine.Complete(d.ID, amb.DriverID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.Status != model.DispatchCompleted || d.CompletedAt == nil {
		t.Fatalf("dispatch = %s, want completed", d.Status)
	}
	got, _ := h.queue.Get(alert.ID)
	if got.Status != model.AlertCompleted || got.ClosedAt == nil {
		t.Fatalf("alert = %s, want completed", got.Status)
	}
	fa, _ = h.fleet.Get(amb.ID)
	if fa.Status != model.AmbulanceAvailable {
		t.Fatalf("ambulance status = %s, want available after completion", fa.Status)
	}

	recs, _ := h.store.Query(context.Background(), history.Window{})
	if len(recs) != 1 || recs[0].Outcome != "completed" {
		t.Fatalf("history = %+v, want one completed record", recs)
	}
	if _, ok := recs[0].ResponseSeconds(); !ok {
		t.Fatal("completed record should carry a response time")
	}
	if n := h.bus.ofType(func(e eventbus.Event) bool { _, ok := e.(events.EmergencyCompleted); return ok }); n != 1 {
		t.Fatalf("emergency_completed events = %d, want 1", n)
	}
}

func TestLifecycleOrderEnforced(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{})
	alert := h.alert(t, "elder-1")

	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := h.engine.MarkArrived(d.ID, amb.DriverID); !faults.IsInvalidState(err) {
		t.Fatalf("arrived before accept err = %v, want invalid state", err)
	}
	if _, err := h.engine.Complete(d.ID, amb.DriverID); !faults.IsInvalidState(err) {
		t.Fatalf("complete before arrival err = %v, want invalid state", err)
	}
	if _, err := h.engine.Accept(d.ID, amb.DriverID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.engine.Accept(d.ID, amb.DriverID); !faults.IsInvalidState(err) {
		t.Fatalf("double accept err = %v, want invalid state", err)
	}
}

func TestDriverOwnership(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{})
	alert := h.alert(t, "elder-1")

	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := h.engine.Accept(d.ID, "drv-intruder"); !faults.IsConflict(err) {
		t.Fatalf("foreign driver err = %v, want conflict", err)
	}
	if _, err := h.engine.Accept(d.ID, ""); !faults.IsValidation(err) {
		t.Fatalf("empty driver err = %v, want validation", err)
	}
}

func TestReleaseByDispatchID(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{})
	alert := h.alert(t, "elder-1")

	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := h.engine.Release(d.ID, "dispatcher override"); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := h.queue.Get(alert.ID)
	if got.Status != model.AlertCancelled {
		t.Fatalf("alert = %s, want cancelled", got.Status)
	}
	if err := h.engine.Release(d.ID, "again"); !faults.IsInvalidState(err) {
		t.Fatalf("double release err = %v, want invalid state", err)
	}
	if err := h.engine.Release("missing", ""); !faults.IsNotFound(err) {
		t.Fatalf("unknown dispatch err = %v, want not found", err)
	}
}

func TestDegradedAssignWithoutLocations(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{}) // no position report yet
	alert := h.alert(t, "elder-1")

	d, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", "")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if d.DistanceKm != nil || d.ETAMinutes != nil {
		t.Fatal("distance and ETA must stay unset without an ambulance position")
	}
}

func TestDeleteBlockedWhileDispatched(t *testing.T) {
	h := newHarness(t)
	amb := h.ambulance(t, "AMB-01", model.GeoPoint{})
	alert := h.alert(t, "elder-1")

	if _, err := h.engine.Assign(alert.ID, amb.ID, "coord-1", ""); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := h.fleet.Delete(amb.ID); !faults.IsConflict(err) {
		t.Fatalf("delete during dispatch err = %v, want conflict", err)
	}
	if _, err := h.engine.Cancel(alert.ID, "done"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := h.fleet.Delete(amb.ID); err != nil {
		t.Fatalf("delete after release: %v", err)
	}
}

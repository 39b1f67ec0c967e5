package scenarios

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/carelink/dispatchd/core/dispatch"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/core/queue"
	"github.com/carelink/dispatchd/core/registry"
	"github.com/carelink/dispatchd/infra/history"
	"github.com/carelink/dispatchd/infra/logger"
)

// RunScenario replays sc against a fresh engine and fails t on any
// divergence from the expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	dispatch.ResetMetrics()

	fleet := registry.New(logger.NopLogger{})
	q := queue.New(logger.NopLogger{})
	store, err := history.NewJSONLStore(filepath.Join(t.TempDir(), "history.jsonl"))
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	defer func() { _ = store.Close() }()
	eng, err := dispatch.New(q, fleet, dispatch.Config{}, nil, store, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	fleet.SetReferenceChecker(eng)

	byNumber := make(map[string]string)
	for _, def := range sc.Fleet {
		amb, err := fleet.Create(def.ToModel())
		if err != nil {
			t.Fatalf("create ambulance %s: %v", def.VehicleNumber, err)
		}
		byNumber[def.VehicleNumber] = amb.ID
		if def.Lat != 0 || def.Lng != 0 {
			if err := fleet.SetLocation(amb.ID, model.GeoPoint{Lat: def.Lat, Lng: def.Lng}, time.Now()); err != nil {
				t.Fatalf("locate %s: %v", def.VehicleNumber, err)
			}
		}
	}

	alert, err := eng.Trigger(sc.Alert.ToModel())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	var dispatchID string
	for i, step := range sc.Steps {
		ambID := byNumber[step.Ambulance]
		var stepErr error
		switch step.Action {
		case "acknowledge":
			_, stepErr = eng.Acknowledge(alert.ID, "coord-1")
		case "assign":
			var d model.Dispatch
			d, stepErr = eng.Assign(alert.ID, ambID, "coord-1", "")
			if stepErr == nil {
				dispatchID = d.ID
			}
		case "accept":
			_, stepErr = eng.Accept(dispatchID, step.DriverID)
		case "location":
			_, stepErr = eng.ReportLocation(dispatchID, step.DriverID, model.GeoPoint{Lat: step.Lat, Lng: step.Lng})
		case "arrived":
			_, stepErr = eng.MarkArrived(dispatchID, step.DriverID)
		case "complete":
			_, stepErr = eng.Complete(dispatchID, step.DriverID)
		case "cancel":
			_, stepErr = eng.Cancel(alert.ID, step.Reason)
		default:
			t.Fatalf("step %d: unknown action %q", i, step.Action)
		}
		checkStepError(t, i, step, stepErr)
	}

	final, err := q.Get(alert.ID)
	if err != nil {
		t.Fatalf("final alert: %v", err)
	}
	if sc.Expected.AlertStatus != "" && string(final.Status) != sc.Expected.AlertStatus {
		t.Errorf("alert status = %s, want %s", final.Status, sc.Expected.AlertStatus)
	}
	if sc.Expected.AmbulanceStatus != "" {
		amb, err := fleet.Get(byNumber[sc.Expected.Ambulance])
		if err != nil {
			t.Fatalf("final ambulance: %v", err)
		}
		if string(amb.Status) != sc.Expected.AmbulanceStatus {
			t.Errorf("ambulance status = %s, want %s", amb.Status, sc.Expected.AmbulanceStatus)
		}
	}
	if sc.Expected.Outcome != "" {
		recs, err := store.Query(context.Background(), history.Window{})
		if err != nil {
			t.Fatalf("history query: %v", err)
		}
		if len(recs) != 1 || recs[0].Outcome != sc.Expected.Outcome {
			t.Errorf("history = %+v, want one %q record", recs, sc.Expected.Outcome)
		}
	}
}

func checkStepError(t *testing.T, i int, step StepDef, err error) {
	t.Helper()
	if step.WantError == "" {
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, step.Action, err)
		}
		return
	}
	matched := false
	switch step.WantError {
	case "validation":
		matched = faults.IsValidation(err)
	case "invalid_state":
		matched = faults.IsInvalidState(err)
	case "conflict":
		matched = faults.IsConflict(err)
	case "not_found":
		matched = faults.IsNotFound(err)
	default:
		t.Fatalf("step %d: unknown want_error %q", i, step.WantError)
	}
	if !matched {
		t.Fatalf("step %d (%s): expected %s fault, got %v", i, step.Action, step.WantError, err)
	}
}

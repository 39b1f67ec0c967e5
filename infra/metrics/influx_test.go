package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/carelink/dispatchd/core/metrics"
	"github.com/carelink/dispatchd/core/model"
)

func TestInfluxSink_RecordDispatchOutcome(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	out := coremetrics.DispatchOutcome{
		AlertID:         "alert-1",
		AlertType:       "fall_detection",
		Priority:        model.PriorityCritical,
		AmbulanceID:     "amb-1",
		Outcome:         "completed",
		DistanceKm:      4.5,
		ResponseSeconds: 300,
		Time:            now,
	}

	if err := sink.RecordDispatchOutcome([]coremetrics.DispatchOutcome{out}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("dispatch_outcome").
		AddTag("alert_type", "fall_detection").
		AddTag("priority", "critical").
		AddTag("outcome", "completed").
		AddTag("ambulance_id", "amb-1").
		AddField("distance_km", 4.5).
		AddField("response_seconds", 300.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatal("health endpoint was not consulted")
	}
}

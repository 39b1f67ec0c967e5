package analytics

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/infra/history"
)

type memStore struct{ recs []history.Record }

func (s *memStore) Append(_ context.Context, rec history.Record) error {
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) Query(_ context.Context, w history.Window) ([]history.Record, error) {
	var out []history.Record
	for _, r := range s.recs {
		if w.Contains(r.ClosedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func rec(i int, outcome, amb string, closed time.Time, respSec float64, distKm float64) history.Record {
	r := history.Record{
		AlertID:     fmt.Sprintf("alert-%02d", i),
		AlertType:   "fall_detection",
		Priority:    model.PriorityHigh,
		AmbulanceID: amb,
		Outcome:     outcome,
		ClosedAt:    closed,
		CreatedAt:   closed.Add(-time.Hour),
	}
	if respSec > 0 {
		ack := closed.Add(-30 * time.Minute)
		arr := ack.Add(time.Duration(respSec) * time.Second)
		r.AcknowledgedAt = &ack
		r.ArrivedAt = &arr
	}
	if distKm > 0 {
		r.DistanceKm = &distKm
	}
	return r
}

func TestSummarizeCompletionRate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	inWindow := now.Add(-time.Hour)
	for i := 0; i < 7; i++ {
		store.recs = append(store.recs, rec(i, "completed", "amb-1", inWindow, 300, 5))
	}
	for i := 7; i < 10; i++ {
		store.recs = append(store.recs, rec(i, "cancelled", "", inWindow, 0, 0))
	}
	// closed outside the window, must not count
	store.recs = append(store.recs, rec(10, "completed", "amb-1", now.Add(-25*time.Hour), 300, 5))

	agg := New(store, nil)
	agg.now = func() time.Time { return now }

	s, err := agg.Summarize(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Total != 10 || s.Completed != 7 || s.Cancelled != 3 {
		t.Fatalf("got %d/%d/%d, want 10 total, 7 completed, 3 cancelled", s.Total, s.Completed, s.Cancelled)
	}
	if s.CompletionRate != 70.0 {
		t.Fatalf("completion rate = %v, want 70.0", s.CompletionRate)
	}
	if math.Abs(s.AvgResponseSeconds-300) > 1e-9 {
		t.Fatalf("avg response = %v, want 300", s.AvgResponseSeconds)
	}
	if math.Abs(s.AvgDistanceKm-5) > 1e-9 {
		t.Fatalf("avg distance = %v, want 5", s.AvgDistanceKm)
	}
	if s.ByAlertType["fall_detection"] != 10 || s.ByPriority["high"] != 10 {
		t.Fatalf("breakdowns = %v / %v", s.ByAlertType, s.ByPriority)
	}
}

func TestSummarizeLeaderboard(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	closed := now.Add(-2 * time.Hour)
	store.recs = append(store.recs,
		rec(1, "completed", "amb-2", closed, 200, 3),
		rec(2, "completed", "amb-2", closed, 400, 3),
		rec(3, "completed", "amb-1", closed, 100, 3),
		rec(4, "cancelled", "amb-3", closed, 0, 0),
	)
	agg := New(store, nil)
	agg.now = func() time.Time { return now }

	s, err := agg.Summarize(context.Background(), PeriodWeek)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(s.Leaderboard) != 2 {
		t.Fatalf("leaderboard rows = %d, want 2 (cancellations excluded)", len(s.Leaderboard))
	}
	if s.Leaderboard[0].AmbulanceID != "amb-2" || s.Leaderboard[0].Completed != 2 {
		t.Fatalf("leader = %+v, want amb-2 with 2", s.Leaderboard[0])
	}
	if math.Abs(s.Leaderboard[0].AvgResponseSeconds-300) > 1e-9 {
		t.Fatalf("leader avg response = %v, want 300", s.Leaderboard[0].AvgResponseSeconds)
	}
	if s.Leaderboard[1].AmbulanceID != "amb-1" {
		t.Fatalf("second = %+v, want amb-1", s.Leaderboard[1])
	}
}

func TestSummarizeEmptyWindowAndBadPeriod(t *testing.T) {
	agg := New(&memStore{}, nil)
	s, err := agg.Summarize(context.Background(), PeriodMonth)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Total != 0 || s.CompletionRate != 0 || s.AvgResponseSeconds != 0 {
		t.Fatalf("empty window summary = %+v, want zeros", s)
	}
	if _, err := agg.Summarize(context.Background(), Period("1y")); !faults.IsValidation(err) {
		t.Fatalf("bad period err = %v, want validation", err)
	}
}

type memAlerts struct{ alerts []model.EmergencyAlert }

func (s *memAlerts) List(includeClosed bool) []model.EmergencyAlert {
	var out []model.EmergencyAlert
	for _, a := range s.alerts {
		if includeClosed || !a.Status.Terminal() {
			out = append(out, a)
		}
	}
	return out
}

func TestSummarizeCountsOpenEmergencies(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	inWindow := now.Add(-time.Hour)
	for i := 0; i < 7; i++ {
		store.recs = append(store.recs, rec(i, "completed", "amb-1", inWindow, 300, 5))
	}
	store.recs = append(store.recs, rec(7, "cancelled", "", inWindow, 0, 0))

	open := &memAlerts{alerts: []model.EmergencyAlert{
		{ID: "alert-08", Status: model.AlertPending, CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "alert-09", Status: model.AlertAcknowledged, CreatedAt: now.Add(-5 * time.Minute)},
		// raised before the window opened, must not count
		{ID: "alert-old", Status: model.AlertPending, CreatedAt: now.Add(-25 * time.Hour)},
	}}
	agg := New(store, open)
	agg.now = func() time.Time { return now }

	s, err := agg.Summarize(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Total != 10 || s.Completed != 7 || s.Cancelled != 1 || s.Open != 2 {
		t.Fatalf("got total %d completed %d cancelled %d open %d, want 10/7/1/2",
			s.Total, s.Completed, s.Cancelled, s.Open)
	}
	if s.CompletionRate != 70.0 {
		t.Fatalf("completion rate = %v, want 70.0", s.CompletionRate)
	}
}

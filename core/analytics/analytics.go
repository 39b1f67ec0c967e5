// Package analytics derives coordinator-facing summaries from terminal
// dispatch history. It only ever reads the store: live state belongs to the
// queue and the engine.
package analytics

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/infra/history"
)

// Period selects the reporting window, anchored at now.
type Period string

const (
	PeriodDay   Period = "24h"
	PeriodWeek  Period = "7d"
	PeriodMonth Period = "30d"
)

// Duration returns the window length for a period.
func (p Period) Duration() (time.Duration, bool) {
	switch p {
	case PeriodDay:
		return 24 * time.Hour, true
	case PeriodWeek:
		return 7 * 24 * time.Hour, true
	case PeriodMonth:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// AmbulanceStanding is one row of the per-vehicle leaderboard.
type AmbulanceStanding struct {
	AmbulanceID        string  `json:"ambulance_id"`
	Completed          int     `json:"completed"`
	AvgResponseSeconds float64 `json:"avg_response_seconds"`
}

// Summary aggregates one window of emergencies: the terminal records plus
// any alerts raised in the window that are still open.
type Summary struct {
	Period             Period              `json:"period"`
	From               time.Time           `json:"from"`
	To                 time.Time           `json:"to"`
	Total              int                 `json:"total"`
	Completed          int                 `json:"completed"`
	Cancelled          int                 `json:"cancelled"`
	Open               int                 `json:"open"`
	CompletionRate     float64             `json:"completion_rate"` // percent
	AvgResponseSeconds float64             `json:"avg_response_seconds"`
	AvgDistanceKm      float64             `json:"avg_distance_km"`
	ByAlertType        map[string]int      `json:"by_alert_type"`
	ByPriority         map[string]int      `json:"by_priority"`
	Leaderboard        []AmbulanceStanding `json:"leaderboard"`
}

// AlertSource lists live alerts. The queue implements it; it lets open
// emergencies count toward period totals before they reach the history
// store.
type AlertSource interface {
	List(includeClosed bool) []model.EmergencyAlert
}

// Aggregator computes summaries over a history store.
type Aggregator struct {
	store history.Store
	open  AlertSource
	now   func() time.Time
}

// New creates an Aggregator reading from store. open may be nil, in which
// case summaries cover terminal emergencies only.
func New(store history.Store, open AlertSource) *Aggregator {
	return &Aggregator{store: store, open: open, now: time.Now}
}

// Records returns the raw history rows for the period ending now, newest
// last. Exports use this directly instead of the aggregated summary.
func (a *Aggregator) Records(ctx context.Context, period Period) ([]history.Record, error) {
	dur, ok := period.Duration()
	if !ok {
		return nil, faults.Validation("unknown period %q, want 24h, 7d or 30d", period)
	}
	to := a.now()
	return a.store.Query(ctx, history.Window{Start: to.Add(-dur), End: to})
}

// Summarize reports on the period ending now. Averages and breakdowns come
// from terminal history; totals also count emergencies still in flight.
func (a *Aggregator) Summarize(ctx context.Context, period Period) (Summary, error) {
	dur, ok := period.Duration()
	if !ok {
		return Summary{}, faults.Validation("unknown period %q, want 24h, 7d or 30d", period)
	}
	to := a.now()
	from := to.Add(-dur)
	recs, err := a.store.Query(ctx, history.Window{Start: from, End: to})
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Period:      period,
		From:        from,
		To:          to,
		ByAlertType: make(map[string]int),
		ByPriority:  make(map[string]int),
	}
	if a.open != nil {
		for _, al := range a.open.List(false) {
			if win := (history.Window{Start: from, End: to}); win.Contains(al.CreatedAt) {
				s.Open++
			}
		}
	}
	var responses, distances []float64
	perAmb := make(map[string]*AmbulanceStanding)
	ambResponses := make(map[string][]float64)
	for _, r := range recs {
		switch r.Outcome {
		case "completed":
			s.Completed++
		case "cancelled":
			s.Cancelled++
		}
		if r.AlertType != "" {
			s.ByAlertType[r.AlertType]++
		}
		if r.Priority != model.Priority("") {
			s.ByPriority[string(r.Priority)]++
		}
		if r.DistanceKm != nil {
			distances = append(distances, *r.DistanceKm)
		}
		sec, hasResp := r.ResponseSeconds()
		if hasResp {
			responses = append(responses, sec)
		}
		if r.Outcome == "completed" && r.AmbulanceID != "" {
			row, ok := perAmb[r.AmbulanceID]
			if !ok {
				row = &AmbulanceStanding{AmbulanceID: r.AmbulanceID}
				perAmb[r.AmbulanceID] = row
			}
			row.Completed++
			if hasResp {
				ambResponses[r.AmbulanceID] = append(ambResponses[r.AmbulanceID], sec)
			}
		}
	}
	// open emergencies raised in the window count toward the total, so a
	// backlog of pending alerts depresses the completion rate
	s.Total = s.Completed + s.Cancelled + s.Open
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total) * 100
	}
	if len(responses) > 0 {
		s.AvgResponseSeconds = stat.Mean(responses, nil)
	}
	if len(distances) > 0 {
		s.AvgDistanceKm = stat.Mean(distances, nil)
	}
	for id, row := range perAmb {
		if rs := ambResponses[id]; len(rs) > 0 {
			row.AvgResponseSeconds = stat.Mean(rs, nil)
		}
		s.Leaderboard = append(s.Leaderboard, *row)
	}
	sort.Slice(s.Leaderboard, func(i, j int) bool {
		a, b := s.Leaderboard[i], s.Leaderboard[j]
		if a.Completed != b.Completed {
			return a.Completed > b.Completed
		}
		return a.AmbulanceID < b.AmbulanceID
	})
	return s, nil
}

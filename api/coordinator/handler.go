// Package coordinator exposes the dispatcher console: the live queue,
// allocation actions and analytics.
package coordinator

import (
	"context"
	"net/http"

	"github.com/carelink/dispatchd/api/respond"
	"github.com/carelink/dispatchd/core/analytics"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/infra/history"
	"github.com/carelink/dispatchd/pkg/export"
)

// Engine is the dispatch surface coordinators act through.
type Engine interface {
	Acknowledge(alertID, coordinatorID string) (model.EmergencyAlert, error)
	Assign(alertID, ambulanceID, coordinatorID, hospital string) (model.Dispatch, error)
	Cancel(alertID, reason string) (model.EmergencyAlert, error)
	ActiveDispatchForAlert(alertID string) (model.Dispatch, bool)
}

// QueueReader lists the emergency queue for the console.
type QueueReader interface {
	List(includeClosed bool) []model.EmergencyAlert
}

// Summarizer produces period reports and the raw rows behind them.
type Summarizer interface {
	Summarize(ctx context.Context, period analytics.Period) (analytics.Summary, error)
	Records(ctx context.Context, period analytics.Period) ([]history.Record, error)
}

// Handler serves /api/coordinator.
type Handler struct {
	engine    Engine
	queue     QueueReader
	analytics Summarizer
}

// New creates the handler.
func New(engine Engine, queue QueueReader, analytics Summarizer) *Handler {
	return &Handler{engine: engine, queue: queue, analytics: analytics}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/coordinator/queue", h.listQueue)
	mux.HandleFunc("POST /api/coordinator/emergency/{id}/acknowledge", h.acknowledge)
	mux.HandleFunc("POST /api/coordinator/emergency/{id}/dispatch", h.dispatch)
	mux.HandleFunc("POST /api/coordinator/emergency/{id}/cancel", h.cancel)
	mux.HandleFunc("GET /api/coordinator/analytics", h.report)
	mux.HandleFunc("GET /api/coordinator/analytics/export", h.export)
}

type queueEntry struct {
	model.EmergencyAlert
	Dispatch *model.Dispatch `json:"dispatch,omitempty"`
}

// listQueue returns open alerts with their active dispatch, highest priority
// first. include_closed=true adds terminal alerts for review screens.
func (h *Handler) listQueue(w http.ResponseWriter, r *http.Request) {
	includeClosed := r.URL.Query().Get("include_closed") == "true"
	alerts := h.queue.List(includeClosed)
	entries := make([]queueEntry, 0, len(alerts))
	for _, a := range alerts {
		e := queueEntry{EmergencyAlert: a}
		if d, ok := h.engine.ActiveDispatchForAlert(a.ID); ok {
			e.Dispatch = &d
		}
		entries = append(entries, e)
	}
	respond.JSON(w, http.StatusOK, entries)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CoordinatorID string `json:"coordinator_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	alert, err := h.engine.Acknowledge(r.PathValue("id"), req.CoordinatorID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmbulanceID   string `json:"ambulance_id"`
		CoordinatorID string `json:"coordinator_id"`
		Hospital      string `json:"hospital"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	if req.AmbulanceID == "" {
		respond.Error(w, faults.Validation("ambulance_id is required"))
		return
	}
	d, err := h.engine.Assign(r.PathValue("id"), req.AmbulanceID, req.CoordinatorID, req.Hospital)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, d)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	alert, err := h.engine.Cancel(r.PathValue("id"), req.Reason)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	period := analytics.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = analytics.PeriodDay
	}
	summary, err := h.analytics.Summarize(r.Context(), period)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, summary)
}

// export streams the period's raw history as CSV or JSON for offline review.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	period := analytics.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = analytics.PeriodDay
	}
	recs, err := h.analytics.Records(r.Context(), period)
	if err != nil {
		respond.Error(w, err)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="dispatch_history.csv"`)
		if err := export.WriteCSV(w, recs); err != nil {
			respond.Error(w, err)
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, recs); err != nil {
			respond.Error(w, err)
		}
	default:
		respond.Error(w, faults.Validation("unknown format %q, want csv or json", format))
	}
}

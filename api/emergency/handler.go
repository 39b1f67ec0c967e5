// Package emergency exposes the alert trigger endpoint used by monitoring
// devices and family apps.
package emergency

import (
	"net/http"

	"github.com/carelink/dispatchd/api/respond"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
)

// Engine is the dispatch surface the handler needs.
type Engine interface {
	Trigger(alert model.EmergencyAlert) (model.EmergencyAlert, error)
}

// AlertReader serves the polling backstop for alert state.
type AlertReader interface {
	Get(id string) (model.EmergencyAlert, error)
}

// Handler serves /api/emergency.
type Handler struct {
	engine Engine
	alerts AlertReader
}

// New creates the handler.
func New(engine Engine, alerts AlertReader) *Handler {
	return &Handler{engine: engine, alerts: alerts}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/emergency/trigger", h.trigger)
	mux.HandleFunc("GET /api/emergency/{id}", h.get)
}

type triggerRequest struct {
	ElderID   string  `json:"elder_id"`
	ElderName string  `json:"elder_name"`
	AlertType string  `json:"alert_type"`
	Priority  string  `json:"priority"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Address   string  `json:"address"`
	Vitals    string  `json:"vitals"`
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	priority, ok := model.ParsePriority(req.Priority)
	if !ok {
		respond.Error(w, faults.Validation("unknown priority %q", req.Priority))
		return
	}
	alert, err := h.engine.Trigger(model.EmergencyAlert{
		ElderID:   req.ElderID,
		ElderName: req.ElderName,
		AlertType: req.AlertType,
		Priority:  priority,
		Location:  model.GeoPoint{Lat: req.Lat, Lng: req.Lng, Address: req.Address},
		Vitals:    req.Vitals,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, alert)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.Get(r.PathValue("id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

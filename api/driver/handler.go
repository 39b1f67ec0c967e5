// Package driver exposes the endpoints the ambulance crew app calls during
// a response.
package driver

import (
	"net/http"

	"github.com/carelink/dispatchd/api/respond"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
)

// Engine is the dispatch surface crews act through.
type Engine interface {
	GetDispatch(id string) (model.Dispatch, error)
	Accept(dispatchID, driverID string) (model.Dispatch, error)
	ReportLocation(dispatchID, driverID string, p model.GeoPoint) (model.Dispatch, error)
	MarkArrived(dispatchID, driverID string) (model.Dispatch, error)
	Complete(dispatchID, driverID string) (model.Dispatch, error)
}

// Handler serves /api/dispatch.
type Handler struct {
	engine Engine
}

// New creates the handler.
func New(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dispatch/{id}", h.get)
	mux.HandleFunc("POST /api/dispatch/{id}/accept", h.accept)
	mux.HandleFunc("POST /api/dispatch/{id}/location", h.location)
	mux.HandleFunc("POST /api/dispatch/{id}/arrived", h.arrived)
	mux.HandleFunc("POST /api/dispatch/{id}/complete", h.complete)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.engine.GetDispatch(r.PathValue("id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

type driverRequest struct {
	DriverID string `json:"driver_id"`
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	d, err := h.engine.Accept(r.PathValue("id"), req.DriverID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func (h *Handler) location(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID string  `json:"driver_id"`
		Lat      float64 `json:"lat"`
		Lng      float64 `json:"lng"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	p := model.GeoPoint{Lat: req.Lat, Lng: req.Lng}
	if !p.Valid() {
		respond.Error(w, faults.Validation("location requires valid coordinates"))
		return
	}
	d, err := h.engine.ReportLocation(r.PathValue("id"), req.DriverID, p)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func (h *Handler) arrived(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	d, err := h.engine.MarkArrived(r.PathValue("id"), req.DriverID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	d, err := h.engine.Complete(r.PathValue("id"), req.DriverID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

// Package ambulances exposes fleet management over HTTP.
package ambulances

import (
	"net/http"
	"strconv"
	"time"

	"github.com/carelink/dispatchd/api/respond"
	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/matcher"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/core/registry"
)

// Fleet is the registry surface the handler mutates.
type Fleet interface {
	Create(spec model.Ambulance) (model.Ambulance, error)
	Get(id string) (model.Ambulance, error)
	List(registry.Filter) []model.Ambulance
	Update(id string, p registry.Patch) (model.Ambulance, error)
	Delete(id string) error
	SetServiceStatus(id string, status model.AmbulanceStatus) error
	SetLocation(id string, p model.GeoPoint, ts time.Time) error
}

// Handler serves /api/ambulances.
type Handler struct {
	fleet   Fleet
	matcher *matcher.Matcher
}

// New creates the handler.
func New(fleet Fleet, m *matcher.Matcher) *Handler {
	return &Handler{fleet: fleet, matcher: m}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ambulances", h.list)
	mux.HandleFunc("POST /api/ambulances", h.create)
	mux.HandleFunc("GET /api/ambulances/available", h.available)
	mux.HandleFunc("GET /api/ambulances/{id}", h.get)
	mux.HandleFunc("PATCH /api/ambulances/{id}", h.update)
	mux.HandleFunc("DELETE /api/ambulances/{id}", h.remove)
	mux.HandleFunc("PATCH /api/ambulances/{id}/status", h.setStatus)
	mux.HandleFunc("PATCH /api/ambulances/{id}/location", h.setLocation)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := registry.Filter{ActiveOnly: r.URL.Query().Get("active") == "true"}
	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := model.ParseAmbulanceStatus(s)
		if !ok {
			respond.Error(w, faults.Validation("unknown status %q", s))
			return
		}
		f.Status = status
	}
	if c := r.URL.Query().Get("class"); c != "" {
		class, ok := model.ParseAmbulanceClass(c)
		if !ok {
			respond.Error(w, faults.Validation("unknown class %q", c))
			return
		}
		f.Class = class
	}
	respond.JSON(w, http.StatusOK, h.fleet.List(f))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var spec model.Ambulance
	if err := respond.Decode(r, &spec); err != nil {
		respond.Error(w, err)
		return
	}
	created, err := h.fleet.Create(spec)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

// available ranks dispatchable ambulances around an emergency location.
func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		respond.Error(w, faults.Validation("lat and lng are required"))
		return
	}
	radius := 0.0
	if s := q.Get("radius_km"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			respond.Error(w, faults.Validation("invalid radius_km %q", s))
			return
		}
		radius = v
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			respond.Error(w, faults.Validation("invalid limit %q", s))
			return
		}
		limit = v
	}
	fleet := h.fleet.List(registry.Filter{Status: model.AmbulanceAvailable, ActiveOnly: true})
	candidates := h.matcher.Rank(model.GeoPoint{Lat: lat, Lng: lng}, radius, limit, fleet)
	respond.JSON(w, http.StatusOK, candidates)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.fleet.Get(r.PathValue("id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

type updateRequest struct {
	VehicleNumber *string   `json:"vehicle_number"`
	LicensePlate  *string   `json:"license_plate"`
	Class         *string   `json:"class"`
	Capacity      *int      `json:"capacity"`
	Equipment     *[]string `json:"equipment"`
	BaseStation   *string   `json:"base_station"`
	DriverID      *string   `json:"driver_id"`
	Active        *bool     `json:"active"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	p := registry.Patch{
		VehicleNumber: req.VehicleNumber,
		LicensePlate:  req.LicensePlate,
		Capacity:      req.Capacity,
		Equipment:     req.Equipment,
		BaseStation:   req.BaseStation,
		DriverID:      req.DriverID,
		Active:        req.Active,
	}
	if req.Class != nil {
		class, ok := model.ParseAmbulanceClass(*req.Class)
		if !ok {
			respond.Error(w, faults.Validation("unknown class %q", *req.Class))
			return
		}
		p.Class = &class
	}
	updated, err := h.fleet.Update(r.PathValue("id"), p)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.Delete(r.PathValue("id")); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	status, ok := model.ParseAmbulanceStatus(req.Status)
	if !ok {
		respond.Error(w, faults.Validation("unknown status %q", req.Status))
		return
	}
	id := r.PathValue("id")
	if err := h.fleet.SetServiceStatus(id, status); err != nil {
		respond.Error(w, err)
		return
	}
	a, err := h.fleet.Get(id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

func (h *Handler) setLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat        float64 `json:"lat"`
		Lng        float64 `json:"lng"`
		RecordedAt string  `json:"recorded_at"`
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
	ts := time.Now()
	if req.RecordedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			respond.Error(w, faults.Validation("invalid recorded_at: %v", err))
			return
		}
		ts = parsed
	}
	if err := h.fleet.SetLocation(r.PathValue("id"), p, ts); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

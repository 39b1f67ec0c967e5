// Package scenarios runs YAML-described emergency lifecycles against the
// dispatch engine. Each file seeds a fleet, raises one alert, replays a
// sequence of coordinator and driver actions and checks the final state.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/carelink/dispatchd/core/model"
)

type AmbulanceDef struct {
	VehicleNumber string  `yaml:"vehicle_number"`
	LicensePlate  string  `yaml:"license_plate"`
	Class         string  `yaml:"class"`
	Capacity      int     `yaml:"capacity"`
	DriverID      string  `yaml:"driver_id"`
	Lat           float64 `yaml:"lat"`
	Lng           float64 `yaml:"lng"`
	Inactive      bool    `yaml:"inactive,omitempty"`
}

func (a AmbulanceDef) ToModel() model.Ambulance {
	return model.Ambulance{
		VehicleNumber: a.VehicleNumber,
		LicensePlate:  a.LicensePlate,
		Class:         model.AmbulanceClass(a.Class),
		Capacity:      a.Capacity,
		DriverID:      a.DriverID,
		Active:        !a.Inactive,
	}
}

type AlertDef struct {
	ElderID   string  `yaml:"elder_id"`
	ElderName string  `yaml:"elder_name"`
	AlertType string  `yaml:"alert_type"`
	Priority  string  `yaml:"priority"`
	Lat       float64 `yaml:"lat"`
	Lng       float64 `yaml:"lng"`
}

func (a AlertDef) ToModel() model.EmergencyAlert {
	return model.EmergencyAlert{
		ElderID:   a.ElderID,
		ElderName: a.ElderName,
		AlertType: a.AlertType,
		Priority:  model.Priority(a.Priority),
		Location:  model.GeoPoint{Lat: a.Lat, Lng: a.Lng},
	}
}

// StepDef is one action in the replay. Ambulance refers to a vehicle_number
// from the fleet section. WantError, when set, asserts the action fails with
// that fault class instead of succeeding.
type StepDef struct {
	Action    string  `yaml:"action"` // acknowledge, assign, accept, location, arrived, complete, cancel
	Ambulance string  `yaml:"ambulance,omitempty"`
	DriverID  string  `yaml:"driver_id,omitempty"`
	Lat       float64 `yaml:"lat,omitempty"`
	Lng       float64 `yaml:"lng,omitempty"`
	Reason    string  `yaml:"reason,omitempty"`
	WantError string  `yaml:"want_error,omitempty"` // validation, invalid_state, conflict, not_found
}

type Expected struct {
	AlertStatus     string `yaml:"alert_status"`
	AmbulanceStatus string `yaml:"ambulance_status,omitempty"`
	Ambulance       string `yaml:"ambulance,omitempty"`
	Outcome         string `yaml:"outcome,omitempty"` // history record outcome
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Fleet       []AmbulanceDef `yaml:"fleet"`
	Alert       AlertDef       `yaml:"alert"`
	Steps       []StepDef      `yaml:"steps"`
	Expected    Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

package model

import "fmt"

// AmbulanceClass describes the level of care a vehicle can deliver.
type AmbulanceClass string

const (
	ClassBasic        AmbulanceClass = "basic"
	ClassAdvanced     AmbulanceClass = "advanced"
	ClassCriticalCare AmbulanceClass = "critical_care"
	ClassAir          AmbulanceClass = "air"
)

// Rank orders classes by capability; higher is more capable. Unknown
// classes rank below basic so they lose every tie-break.
func (c AmbulanceClass) Rank() int {
	switch c {
	case ClassAir:
		return 4
	case ClassCriticalCare:
		return 3
	case ClassAdvanced:
		return 2
	case ClassBasic:
		return 1
	default:
		return 0
	}
}

// ParseAmbulanceClass converts a wire string to an AmbulanceClass.
func ParseAmbulanceClass(s string) (AmbulanceClass, bool) {
	switch AmbulanceClass(s) {
	case ClassBasic, ClassAdvanced, ClassCriticalCare, ClassAir:
		return AmbulanceClass(s), true
	default:
		return "", false
	}
}

// AmbulanceStatus is the operational state of a vehicle.
type AmbulanceStatus string

const (
	AmbulanceAvailable   AmbulanceStatus = "available"
	AmbulanceEnRoute     AmbulanceStatus = "en_route"
	AmbulanceBusy        AmbulanceStatus = "busy"
	AmbulanceMaintenance AmbulanceStatus = "maintenance"
	AmbulanceOffline     AmbulanceStatus = "offline"
)

// Responding reports whether the status is owned by the dispatch engine,
// meaning the vehicle is committed to an active emergency response.
func (s AmbulanceStatus) Responding() bool {
	return s == AmbulanceEnRoute || s == AmbulanceBusy
}

// ParseAmbulanceStatus converts a wire string to an AmbulanceStatus.
func ParseAmbulanceStatus(s string) (AmbulanceStatus, bool) {
	switch AmbulanceStatus(s) {
	case AmbulanceAvailable, AmbulanceEnRoute, AmbulanceBusy, AmbulanceMaintenance, AmbulanceOffline:
		return AmbulanceStatus(s), true
	default:
		return "", false
	}
}

// Ambulance represents a vehicle in the emergency response fleet.
type Ambulance struct {
	ID            string          `json:"id"`
	VehicleNumber string          `json:"vehicle_number"`
	LicensePlate  string          `json:"license_plate"`
	Class         AmbulanceClass  `json:"class"`
	Status        AmbulanceStatus `json:"status"`
	Capacity      int             `json:"capacity"` // patient capacity, at least 1
	Location      Location        `json:"location"`
	DriverID      string          `json:"driver_id,omitempty"` // weak reference, may be empty
	Equipment     []string        `json:"equipment,omitempty"`
	BaseStation   string          `json:"base_station,omitempty"`
	Active        bool            `json:"active"`
}

// Validate checks the fields required to register an ambulance.
func (a Ambulance) Validate() error {
	if a.VehicleNumber == "" {
		return fmt.Errorf("vehicle number is required")
	}
	if a.LicensePlate == "" {
		return fmt.Errorf("license plate is required")
	}
	if a.Class.Rank() == 0 {
		return fmt.Errorf("unknown ambulance class %q", a.Class)
	}
	if a.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	return nil
}

// Dispatchable reports whether the ambulance may be offered to the matcher.
func (a Ambulance) Dispatchable() bool {
	return a.Active && a.Status == AmbulanceAvailable
}

// HasEquipment reports whether the ambulance carries the named capability.
func (a Ambulance) HasEquipment(name string) bool {
	for _, e := range a.Equipment {
		if e == name {
			return true
		}
	}
	return false
}

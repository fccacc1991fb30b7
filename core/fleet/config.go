package fleet

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// VehicleConfig describes a vehicle in configuration files and API payloads.
type VehicleConfig struct {
	ID          string    `json:"id" validate:"required"`
	Model       string    `json:"model"`
	Capacity    int       `json:"capacity" validate:"gt=0"`
	Class       string    `json:"class" validate:"omitempty,oneof=standard special_purpose special-purpose special"`
	Kind        string    `json:"kind" validate:"omitempty,oneof=bus van"`
	Status      string    `json:"status" validate:"omitempty,oneof=available in_maintenance out_of_service"`
	LastService time.Time `json:"last_service"`
	// Standing places, buses only.
	Standing int `json:"standing" validate:"gte=0"`
	// VanType is passenger, cargo or mixed; vans only.
	VanType string `json:"van_type" validate:"omitempty,oneof=passenger cargo mixed"`
}

// Vehicle converts the configuration to a validated model.Vehicle.
func (c VehicleConfig) Vehicle() (model.Vehicle, error) {
	class, err := model.ParseVehicleClass(c.Class)
	if err != nil {
		return model.Vehicle{}, err
	}
	kind, err := model.ParseVehicleKind(c.Kind)
	if err != nil {
		return model.Vehicle{}, err
	}
	status, err := model.ParseOperationalStatus(c.Status)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("vehicle %s: %v: %w", c.ID, err, model.ErrInvalidVehicle)
	}
	v := model.Vehicle{
		ID:          c.ID,
		Model:       c.Model,
		Capacity:    c.Capacity,
		Class:       class,
		Kind:        kind,
		Status:      status,
		LastService: c.LastService,
	}
	switch kind {
	case model.KindBus:
		if c.VanType != "" {
			return model.Vehicle{}, fmt.Errorf("vehicle %s: van_type set on a bus: %w", c.ID, model.ErrInvalidVehicle)
		}
		v.Bus = &model.BusDetails{Standing: c.Standing}
	case model.KindVan:
		if c.Standing != 0 {
			return model.Vehicle{}, fmt.Errorf("vehicle %s: standing set on a van: %w", c.ID, model.ErrInvalidVehicle)
		}
		vt := model.VanType(c.VanType)
		if vt == "" {
			vt = model.VanPassenger
		}
		switch vt {
		case model.VanPassenger, model.VanCargo, model.VanMixed:
		default:
			return model.Vehicle{}, fmt.Errorf("vehicle %s: unknown van type %q: %w", c.ID, c.VanType, model.ErrInvalidVehicle)
		}
		v.Van = &model.VanDetails{Type: vt}
	}
	if err := v.Validate(); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

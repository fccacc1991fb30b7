package model

import (
	"fmt"
	"time"
)

// VehicleClass tags a vehicle as standard or special-purpose. Special-purpose
// vehicles are reserved for priority and emergency use and follow a shorter
// maintenance interval.
type VehicleClass int

const (
	ClassStandard VehicleClass = iota
	ClassSpecialPurpose
)

func (c VehicleClass) String() string {
	switch c {
	case ClassStandard:
		return "standard"
	case ClassSpecialPurpose:
		return "special_purpose"
	default:
		return "unknown"
	}
}

// ParseVehicleClass converts a configuration string to a VehicleClass.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch s {
	case "", "standard":
		return ClassStandard, nil
	case "special_purpose", "special-purpose", "special":
		return ClassSpecialPurpose, nil
	default:
		return ClassStandard, fmt.Errorf("unknown vehicle class %q: %w", s, ErrInvalidVehicle)
	}
}

// VehicleKind distinguishes heavy vehicles (buses) from light ones (vans).
type VehicleKind int

const (
	KindBus VehicleKind = iota
	KindVan
)

func (k VehicleKind) String() string {
	switch k {
	case KindBus:
		return "bus"
	case KindVan:
		return "van"
	default:
		return "unknown"
	}
}

// Heavy reports whether the kind uses the heavy-vehicle service interval.
func (k VehicleKind) Heavy() bool { return k == KindBus }

// ParseVehicleKind converts a configuration string to a VehicleKind.
func ParseVehicleKind(s string) (VehicleKind, error) {
	switch s {
	case "", "bus":
		return KindBus, nil
	case "van":
		return KindVan, nil
	default:
		return KindBus, fmt.Errorf("unknown vehicle kind %q: %w", s, ErrInvalidVehicle)
	}
}

// OperationalStatus is the state of the vehicle state machine.
type OperationalStatus int

const (
	StatusAvailable OperationalStatus = iota
	StatusInMaintenance
	StatusOutOfService
)

func (s OperationalStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusInMaintenance:
		return "in_maintenance"
	case StatusOutOfService:
		return "out_of_service"
	default:
		return "unknown"
	}
}

// ParseOperationalStatus converts an API or configuration string to a status.
func ParseOperationalStatus(s string) (OperationalStatus, error) {
	switch s {
	case "", "available":
		return StatusAvailable, nil
	case "in_maintenance":
		return StatusInMaintenance, nil
	case "out_of_service":
		return StatusOutOfService, nil
	default:
		return StatusAvailable, fmt.Errorf("unknown status %q: %w", s, ErrInvalidTransition)
	}
}

// VanType describes what a van is configured to carry.
type VanType string

const (
	VanPassenger VanType = "passenger"
	VanCargo     VanType = "cargo"
	VanMixed     VanType = "mixed"
)

// VanDetails is the variant payload carried by vans.
type VanDetails struct {
	Type VanType
}

// BusDetails is the variant payload carried by buses.
type BusDetails struct {
	Standing int // standing places included in Capacity
}

// Vehicle is the static description of a fleet vehicle. Shared behaviour
// (availability, calendar) lives in the fleet package; behaviour that depends
// on the vehicle kind is dispatched on Kind and Class.
type Vehicle struct {
	ID          string
	Model       string
	Capacity    int
	Class       VehicleClass
	Kind        VehicleKind
	Status      OperationalStatus
	LastService time.Time

	// Exactly one of Bus or Van is expected to be set, matching Kind.
	Bus *BusDetails
	Van *VanDetails
}

// Validate checks that the vehicle description is sound.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required: %w", ErrInvalidVehicle)
	}
	if v.Capacity <= 0 {
		return fmt.Errorf("vehicle %s: capacity must be positive: %w", v.ID, ErrInvalidVehicle)
	}
	if v.Kind == KindBus && v.Van != nil {
		return fmt.Errorf("vehicle %s: bus carries van details: %w", v.ID, ErrInvalidVehicle)
	}
	if v.Kind == KindVan && v.Bus != nil {
		return fmt.Errorf("vehicle %s: van carries bus details: %w", v.ID, ErrInvalidVehicle)
	}
	return nil
}

// MeetsCapacity returns true if the vehicle can seat n passengers.
func (v Vehicle) MeetsCapacity(n int) bool {
	return v.Capacity >= n
}

// CanBoard returns true if n passengers can board a passenger-carrying vehicle.
// Cargo-only vans never board passengers.
func (v Vehicle) CanBoard(n int) bool {
	if n < 0 {
		return false
	}
	if v.Kind == KindVan && v.Van != nil && v.Van.Type == VanCargo {
		return false
	}
	return v.MeetsCapacity(n)
}

// CanCarryCargo returns true for vans configured for cargo or mixed loads.
func (v Vehicle) CanCarryCargo() bool {
	if v.Kind != KindVan || v.Van == nil {
		return false
	}
	return v.Van.Type == VanCargo || v.Van.Type == VanMixed
}

// SpecialPurpose is a shorthand for Class == ClassSpecialPurpose.
func (v Vehicle) SpecialPurpose() bool { return v.Class == ClassSpecialPurpose }

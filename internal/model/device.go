package model

import "time"

// Device statuses as stored in devices.status.
const (
	DeviceAvailable   = "AVAILABLE"
	DeviceMaintenance = "MAINTENANCE"
	DeviceRetired     = "RETIRED"
)

// DeviceModel is a catalog entry for a rentable product line (a laptop
// model, a camera body, ...).  TotalUnits is the physical inventory
// count for the model and is the base figure for availability.  The
// catalog is owned elsewhere; this core only reads it.
type DeviceModel struct {
	ID         uint64    // device_models.id
	Name       string    // device_models.name
	Brand      string    // device_models.brand
	TotalUnits uint32    // device_models.total_units
	CreatedAt  time.Time // device_models.created_at
	UpdatedAt  time.Time // device_models.updated_at
}

// Device is one physical unit of a model, identified by serial number.
type Device struct {
	ID            uint64    // devices.id
	DeviceModelID uint64    // devices.device_model_id
	SerialNo      string    // devices.serial_no
	Status        string    // devices.status
	CreatedAt     time.Time // devices.created_at
}

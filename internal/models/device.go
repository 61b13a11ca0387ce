package models

import (
	"time"

	"github.com/google/uuid"
)

// Pin modes as reported by the device firmware.
const (
	PinModeInput  = "INPUT"
	PinModeOutput = "OUTPUT"
)

// Device represents one physical ESP32 unit, identified by its chip ID.
type Device struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ChipID     string    `json:"chipId" db:"chip_id"`
	MACAddress string    `json:"macAddress" db:"mac_address"`
	Name       string    `json:"name" db:"name"`
	LastSeen   time.Time `json:"lastSeen" db:"last_seen"`
	// IsActive is a write-time flag set on every successful report.
	// Connectivity is derived from LastSeen at read time, never stored.
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PinState is the current state of one GPIO pin of one device.
// A pin is identified by (DeviceID, PinNumber) and lives as long as
// the owning device.
type PinState struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DeviceID  uuid.UUID `json:"deviceId" db:"device_id"`
	PinNumber int       `json:"pinNumber" db:"pin_number"`
	Mode      string    `json:"mode" db:"mode"`
	Value     int       `json:"value" db:"value"`
	Available bool      `json:"available" db:"available"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

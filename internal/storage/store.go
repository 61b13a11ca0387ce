package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the record store interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Device methods
	GetDeviceByChipID(ctx context.Context, chipID string) (*models.Device, error)
	CreateDevice(ctx context.Context, device *models.Device) error
	UpdateDevice(ctx context.Context, device *models.Device) error

	// Pin methods
	CreatePins(ctx context.Context, pins []*models.PinState) error
	UpsertPin(ctx context.Context, pin *models.PinState) error

	// Telemetry methods
	CreateTelemetrySample(ctx context.Context, sample *models.TelemetrySample) error

	// Projections shared by the push and pull read paths
	GetDeviceDetail(ctx context.Context, deviceID uuid.UUID) (*DeviceDetail, error)
	GetMostRecentActiveDevice(ctx context.Context) (*DeviceDetail, error)

	// Firmware methods
	CreateFirmware(ctx context.Context, fw *models.FirmwareImage) error
	GetFirmware(ctx context.Context, id uuid.UUID) (*models.FirmwareImage, error)
	GetLatestActiveFirmware(ctx context.Context, deviceID string) (*models.FirmwareImage, error)
	ListFirmware(ctx context.Context, limit int) ([]*models.FirmwareImage, error)

	// Close the store
	Close() error
}

// DeviceDetail bundles a device with its full pin set (sorted by pin
// number) and its most recent telemetry sample, nil when none exists.
type DeviceDetail struct {
	Device       *models.Device
	Pins         []*models.PinState
	LatestSample *models.TelemetrySample
}

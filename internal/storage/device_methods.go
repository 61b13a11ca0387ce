package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// ========== Device Methods ==========

// GetDeviceByChipID gets a device by its chip ID
func (s *PostgresStore) GetDeviceByChipID(ctx context.Context, chipID string) (*models.Device, error) {
	query := `
        SELECT id, chip_id, mac_address, name, last_seen, is_active, created_at, updated_at
        FROM devices
        WHERE chip_id = $1`

	device := &models.Device{}
	err := s.getDB().QueryRowContext(ctx, query, chipID).Scan(
		&device.ID, &device.ChipID, &device.MACAddress, &device.Name,
		&device.LastSeen, &device.IsActive, &device.CreatedAt, &device.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return device, nil
}

// CreateDevice creates a new device
func (s *PostgresStore) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	query := `
        INSERT INTO devices (id, chip_id, mac_address, name, last_seen, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.ChipID, device.MACAddress, device.Name,
		device.LastSeen, device.IsActive, device.CreatedAt, device.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// UpdateDevice updates a device
func (s *PostgresStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now()

	query := `
        UPDATE devices SET
            mac_address = $2, name = $3, last_seen = $4, is_active = $5, updated_at = $6
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.MACAddress, device.Name,
		device.LastSeen, device.IsActive, device.UpdatedAt,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetDeviceDetail loads a device together with all of its pins and the
// most recent telemetry sample
func (s *PostgresStore) GetDeviceDetail(ctx context.Context, deviceID uuid.UUID) (*DeviceDetail, error) {
	query := `
        SELECT id, chip_id, mac_address, name, last_seen, is_active, created_at, updated_at
        FROM devices
        WHERE id = $1`

	device := &models.Device{}
	err := s.getDB().QueryRowContext(ctx, query, deviceID).Scan(
		&device.ID, &device.ChipID, &device.MACAddress, &device.Name,
		&device.LastSeen, &device.IsActive, &device.CreatedAt, &device.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return s.loadDetail(ctx, device)
}

// GetMostRecentActiveDevice loads the detail of the active device that
// reported most recently
func (s *PostgresStore) GetMostRecentActiveDevice(ctx context.Context) (*DeviceDetail, error) {
	query := `
        SELECT id, chip_id, mac_address, name, last_seen, is_active, created_at, updated_at
        FROM devices
        WHERE is_active = true
        ORDER BY last_seen DESC
        LIMIT 1`

	device := &models.Device{}
	err := s.getDB().QueryRowContext(ctx, query).Scan(
		&device.ID, &device.ChipID, &device.MACAddress, &device.Name,
		&device.LastSeen, &device.IsActive, &device.CreatedAt, &device.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return s.loadDetail(ctx, device)
}

// loadDetail fills in pins and the latest sample for an already loaded device
func (s *PostgresStore) loadDetail(ctx context.Context, device *models.Device) (*DeviceDetail, error) {
	pins, err := s.listPins(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	sample, err := s.latestSample(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	return &DeviceDetail{Device: device, Pins: pins, LatestSample: sample}, nil
}

package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// ========== Firmware Methods ==========

// CreateFirmware records an uploaded firmware image
func (s *PostgresStore) CreateFirmware(ctx context.Context, fw *models.FirmwareImage) error {
	if fw.ID == uuid.Nil {
		fw.ID = uuid.New()
	}

	query := `
        INSERT INTO firmware_images (id, device_id, filename, version, filepath, size, uploaded_at, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		fw.ID, fw.DeviceID, fw.Filename, fw.Version,
		fw.Filepath, fw.Size, fw.UploadedAt, fw.IsActive,
	)

	return err
}

// GetFirmware gets a firmware image by id
func (s *PostgresStore) GetFirmware(ctx context.Context, id uuid.UUID) (*models.FirmwareImage, error) {
	query := `
        SELECT id, device_id, filename, version, filepath, size, uploaded_at, is_active
        FROM firmware_images
        WHERE id = $1`

	fw := &models.FirmwareImage{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&fw.ID, &fw.DeviceID, &fw.Filename, &fw.Version,
		&fw.Filepath, &fw.Size, &fw.UploadedAt, &fw.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return fw, nil
}

// GetLatestActiveFirmware gets the most recently uploaded active image for
// a device
func (s *PostgresStore) GetLatestActiveFirmware(ctx context.Context, deviceID string) (*models.FirmwareImage, error) {
	query := `
        SELECT id, device_id, filename, version, filepath, size, uploaded_at, is_active
        FROM firmware_images
        WHERE device_id = $1 AND is_active = true
        ORDER BY uploaded_at DESC
        LIMIT 1`

	fw := &models.FirmwareImage{}
	err := s.getDB().QueryRowContext(ctx, query, deviceID).Scan(
		&fw.ID, &fw.DeviceID, &fw.Filename, &fw.Version,
		&fw.Filepath, &fw.Size, &fw.UploadedAt, &fw.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return fw, nil
}

// ListFirmware lists firmware images, most recent first
func (s *PostgresStore) ListFirmware(ctx context.Context, limit int) ([]*models.FirmwareImage, error) {
	query := `
        SELECT id, device_id, filename, version, filepath, size, uploaded_at, is_active
        FROM firmware_images
        ORDER BY uploaded_at DESC
        LIMIT $1`

	rows, err := s.getDB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.FirmwareImage
	for rows.Next() {
		fw := &models.FirmwareImage{}
		err := rows.Scan(
			&fw.ID, &fw.DeviceID, &fw.Filename, &fw.Version,
			&fw.Filepath, &fw.Size, &fw.UploadedAt, &fw.IsActive,
		)
		if err != nil {
			return nil, err
		}

		images = append(images, fw)
	}

	return images, rows.Err()
}

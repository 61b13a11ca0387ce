package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// ========== Telemetry Methods ==========

// CreateTelemetrySample appends one telemetry sample for a device
func (s *PostgresStore) CreateTelemetrySample(ctx context.Context, sample *models.TelemetrySample) error {
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}

	query := `
        INSERT INTO telemetry_samples (
            id, device_id, ip, flash_size, free_heap, cpu_freq,
            sdk_version, core_version, wifi_rssi, uptime, timestamp
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.getDB().ExecContext(ctx, query,
		sample.ID, sample.DeviceID, sample.IP, sample.FlashSize,
		sample.FreeHeap, sample.CPUFreq, sample.SDKVersion,
		sample.CoreVersion, sample.WifiRSSI, sample.Uptime, sample.Timestamp,
	)

	return err
}

// latestSample returns the newest sample for a device, nil when the device
// has never reported vitals. Timestamp ties break on insertion order.
func (s *PostgresStore) latestSample(ctx context.Context, deviceID uuid.UUID) (*models.TelemetrySample, error) {
	query := `
        SELECT id, device_id, ip, flash_size, free_heap, cpu_freq,
               sdk_version, core_version, wifi_rssi, uptime, timestamp
        FROM telemetry_samples
        WHERE device_id = $1
        ORDER BY timestamp DESC, seq DESC
        LIMIT 1`

	sample := &models.TelemetrySample{}
	err := s.getDB().QueryRowContext(ctx, query, deviceID).Scan(
		&sample.ID, &sample.DeviceID, &sample.IP, &sample.FlashSize,
		&sample.FreeHeap, &sample.CPUFreq, &sample.SDKVersion,
		&sample.CoreVersion, &sample.WifiRSSI, &sample.Uptime, &sample.Timestamp,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return sample, nil
}

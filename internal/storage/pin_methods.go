package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// ========== Pin Methods ==========

// CreatePins bulk inserts the default pin set for a new device
func (s *PostgresStore) CreatePins(ctx context.Context, pins []*models.PinState) error {
	query := `
        INSERT INTO pin_states (id, device_id, pin_number, mode, value, available, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, pin := range pins {
		if pin.ID == uuid.Nil {
			pin.ID = uuid.New()
		}

		_, err := s.getDB().ExecContext(ctx, query,
			pin.ID, pin.DeviceID, pin.PinNumber, pin.Mode,
			pin.Value, pin.Available, pin.Timestamp,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// UpsertPin creates or overwrites one pin keyed by (device_id, pin_number)
func (s *PostgresStore) UpsertPin(ctx context.Context, pin *models.PinState) error {
	if pin.ID == uuid.Nil {
		pin.ID = uuid.New()
	}
	if pin.Timestamp.IsZero() {
		pin.Timestamp = time.Now()
	}

	query := `
        INSERT INTO pin_states (id, device_id, pin_number, mode, value, available, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (device_id, pin_number) DO UPDATE SET
            mode = EXCLUDED.mode,
            value = EXCLUDED.value,
            available = EXCLUDED.available,
            timestamp = EXCLUDED.timestamp`

	_, err := s.getDB().ExecContext(ctx, query,
		pin.ID, pin.DeviceID, pin.PinNumber, pin.Mode,
		pin.Value, pin.Available, pin.Timestamp,
	)

	return err
}

// listPins lists all pins of a device ordered by pin number
func (s *PostgresStore) listPins(ctx context.Context, deviceID uuid.UUID) ([]*models.PinState, error) {
	query := `
        SELECT id, device_id, pin_number, mode, value, available, timestamp
        FROM pin_states
        WHERE device_id = $1
        ORDER BY pin_number`

	rows, err := s.getDB().QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pins []*models.PinState
	for rows.Next() {
		pin := &models.PinState{}
		err := rows.Scan(
			&pin.ID, &pin.DeviceID, &pin.PinNumber, &pin.Mode,
			&pin.Value, &pin.Available, &pin.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		pins = append(pins, pin)
	}

	return pins, rows.Err()
}

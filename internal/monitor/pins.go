package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

const maxPinNumber = 39

// flashPins are wired to the on-board SPI flash and never exposed at all.
var flashPins = map[int]bool{
	6: true, 7: true, 8: true, 9: true, 10: true, 11: true,
}

// reservedPins serve boot/UART/strapping duties and are materialized as
// unavailable. The overlap with flashPins is harmless since those never
// enter the set.
var reservedPins = map[int]bool{
	1: true, 3: true, 6: true, 7: true, 8: true, 9: true, 10: true,
	11: true, 12: true, 13: true, 14: true, 15: true, 16: true,
	17: true, 18: true, 19: true,
}

// DefaultPins materializes the full pin set for a freshly created device:
// pins 0..39 minus the flash pins, all INPUT/0, reserved pins flagged
// unavailable.
func DefaultPins(deviceID uuid.UUID, now time.Time) []*models.PinState {
	pins := make([]*models.PinState, 0, maxPinNumber+1-len(flashPins))
	for n := 0; n <= maxPinNumber; n++ {
		if flashPins[n] {
			continue
		}

		pins = append(pins, &models.PinState{
			ID:        uuid.New(),
			DeviceID:  deviceID,
			PinNumber: n,
			Mode:      models.PinModeInput,
			Value:     0,
			Available: !reservedPins[n],
			Timestamp: now,
		})
	}

	return pins
}

package monitor

import (
	"time"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
	"github.com/esp32-monitor/esp32-monitor-server/internal/storage"
)

// PlaceholderChipID identifies the snapshot returned when no device has
// ever reported.
const PlaceholderChipID = "esp32-default"

// BuildSnapshot projects a stored device detail into the wire snapshot.
// Both the websocket push path and the status pull path go through here so
// the two can never disagree about a device's state.
func BuildSnapshot(detail *storage.DeviceDetail, now time.Time) *models.DeviceSnapshot {
	snap := &models.DeviceSnapshot{
		ChipID:    detail.Device.ChipID,
		Connected: IsConnected(detail.Device.LastSeen, now),
		LastSeen:  detail.Device.LastSeen,
		MAC:       detail.Device.MACAddress,
		Pins:      make([]models.PinSnapshot, 0, len(detail.Pins)),
	}

	// Vitals come from the latest sample; a device that has never
	// reported vitals keeps the zero values.
	if sample := detail.LatestSample; sample != nil {
		snap.IP = sample.IP
		snap.FlashSize = sample.FlashSize
		snap.FreeHeap = sample.FreeHeap
		snap.CPUFreq = sample.CPUFreq
		snap.SDKVersion = sample.SDKVersion
		snap.CoreVersion = sample.CoreVersion
		snap.WifiRSSI = sample.WifiRSSI
		snap.Uptime = sample.Uptime
	}

	for _, pin := range detail.Pins {
		snap.Pins = append(snap.Pins, models.PinSnapshot{
			Number:    pin.PinNumber,
			Available: pin.Available,
			Mode:      pin.Mode,
			Value:     pin.Value,
		})
	}

	return snap
}

// EmptySnapshot is the well-defined "no device" answer: disconnected,
// zero vitals, no pins.
func EmptySnapshot(now time.Time) *models.DeviceSnapshot {
	return &models.DeviceSnapshot{
		ChipID:    PlaceholderChipID,
		Connected: false,
		LastSeen:  now,
		Pins:      []models.PinSnapshot{},
	}
}

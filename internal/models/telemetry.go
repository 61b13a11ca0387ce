package models

import (
	"time"

	"github.com/google/uuid"
)

// TelemetrySample is one point-in-time report of device vitals.
// Samples are append-only; the latest one per device drives the snapshot.
type TelemetrySample struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DeviceID    uuid.UUID `json:"deviceId" db:"device_id"`
	IP          string    `json:"ip" db:"ip"`
	FlashSize   int64     `json:"flashSize" db:"flash_size"`
	FreeHeap    int64     `json:"freeHeap" db:"free_heap"`
	CPUFreq     int       `json:"cpuFreq" db:"cpu_freq"`
	SDKVersion  string    `json:"sdkVersion" db:"sdk_version"`
	CoreVersion string    `json:"coreVersion" db:"core_version"`
	WifiRSSI    int       `json:"wifiRssi" db:"wifi_rssi"`
	Uptime      int64     `json:"uptime" db:"uptime"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// TelemetryPayload is an inbound report pushed by a device. ChipID, MAC
// and IP are required; every other field is best-effort and defaults to
// its zero value when the firmware omits it.
type TelemetryPayload struct {
	ChipID      string      `json:"chipId"`
	MAC         string      `json:"mac"`
	IP          string      `json:"ip"`
	Name        string      `json:"name,omitempty"`
	FlashSize   int64       `json:"flashSize,omitempty"`
	FreeHeap    int64       `json:"freeHeap,omitempty"`
	CPUFreq     int         `json:"cpuFreq,omitempty"`
	SDKVersion  string      `json:"sdkVersion,omitempty"`
	CoreVersion string      `json:"coreVersion,omitempty"`
	WifiRSSI    int         `json:"wifiRssi,omitempty"`
	Uptime      int64       `json:"uptime,omitempty"`
	Pins        []PinReport `json:"pins,omitempty"`
}

// Validate checks the three required identity fields. It returns a
// *ValidationError naming the first missing field.
func (p *TelemetryPayload) Validate() error {
	switch {
	case p.ChipID == "":
		return &ValidationError{Field: "chipId"}
	case p.MAC == "":
		return &ValidationError{Field: "mac"}
	case p.IP == "":
		return &ValidationError{Field: "ip"}
	}
	return nil
}

// PinReport is the per-pin fragment of a telemetry payload. Mode defaults
// to INPUT, Value to 0 and Available to true when not supplied.
type PinReport struct {
	Number    int    `json:"number"`
	Mode      string `json:"mode,omitempty"`
	Value     int    `json:"value,omitempty"`
	Available *bool  `json:"available,omitempty"`
}

package models

import "time"

// DeviceSnapshot is the read-side projection of a device's latest known
// state. The push path (websocket broadcast) and the pull path (status
// query) both emit exactly this shape.
type DeviceSnapshot struct {
	ChipID      string        `json:"chipId"`
	Connected   bool          `json:"connected"`
	LastSeen    time.Time     `json:"lastSeen"`
	IP          string        `json:"ip"`
	MAC         string        `json:"mac"`
	FlashSize   int64         `json:"flashSize"`
	FreeHeap    int64         `json:"freeHeap"`
	CPUFreq     int           `json:"cpuFreq"`
	SDKVersion  string        `json:"sdkVersion"`
	CoreVersion string        `json:"coreVersion"`
	WifiRSSI    int           `json:"wifiRssi"`
	Uptime      int64         `json:"uptime"`
	Pins        []PinSnapshot `json:"pins"`
}

// PinSnapshot is the wire shape of one pin inside a DeviceSnapshot.
type PinSnapshot struct {
	Number    int    `json:"number"`
	Available bool   `json:"available"`
	Mode      string `json:"mode"`
	Value     int    `json:"value"`
}

// internal/model/scan.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Source names used by the discovery sources
const (
	SourceBluetooth = "bluetooth"
	SourceBLE       = "ble"
	SourceSerial    = "serial"
	SourceUSB       = "usb"
)

// Sighting is a device as reported by one discovery source, together with
// the source-specific address (MAC, port path, bus/address).
type Sighting struct {
	Source  string     `json:"source" yaml:"source"`
	Address string     `json:"address" yaml:"address"`
	Device  DeviceInfo `json:"device" yaml:"device"`
}

// Devices projects the DeviceInfo values out of sightings, preserving order
func Devices(sightings []Sighting) []DeviceInfo {
	devices := make([]DeviceInfo, 0, len(sightings))
	for _, s := range sightings {
		devices = append(devices, s.Device)
	}
	return devices
}

// Outcome distinguishes a failed scan from one that legitimately found nothing
type Outcome string

const (
	OutcomeDevicesFound Outcome = "DEVICES_FOUND"
	OutcomeNoDevices    Outcome = "NO_DEVICES"
	OutcomeFailed       Outcome = "FAILED"
)

// OutcomeOf derives the outcome of a pass from its result
func OutcomeOf(count int, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeFailed
	case count == 0:
		return OutcomeNoDevices
	default:
		return OutcomeDevicesFound
	}
}

// ScanRecord is one completed discovery pass as kept in the scan history
type ScanRecord struct {
	ID         uuid.UUID  `json:"id"`
	ScanType   string     `json:"scan_type"`
	Backend    string     `json:"backend"`
	Outcome    Outcome    `json:"outcome"`
	Diagnostic string     `json:"diagnostic,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Sightings  []Sighting `json:"sightings"`
}

// Duration returns how long the pass took
func (r *ScanRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// DeviceCount returns the number of devices reported by the pass
func (r *ScanRecord) DeviceCount() int {
	return len(r.Sightings)
}

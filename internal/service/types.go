// internal/service/types.go
package service

import (
	"time"

	"github.com/google/uuid"

	"bt-discovery/internal/model"
)

// DTOs for Discovery Service

// ScanRequest represents device scan request
type ScanRequest struct {
	ScanType string `json:"scan_type" form:"type"` // bluetooth, ble, serial, usb, all
}

// ScanReport is the result of one pass as returned to API and CLI callers
type ScanReport struct {
	ScanID     uuid.UUID          `json:"scan_id"`
	ScanType   string             `json:"scan_type"`
	Backend    string             `json:"backend"`
	Outcome    model.Outcome      `json:"outcome"`
	Diagnostic string             `json:"diagnostic,omitempty"`
	Devices    []model.DeviceInfo `json:"devices"`
	Sightings  []model.Sighting   `json:"sightings"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
}

// NewScanReport builds a report from a recorded scan
func NewScanReport(record *model.ScanRecord) *ScanReport {
	sightings := record.Sightings
	if sightings == nil {
		sightings = []model.Sighting{}
	}
	return &ScanReport{
		ScanID:     record.ID,
		ScanType:   record.ScanType,
		Backend:    record.Backend,
		Outcome:    record.Outcome,
		Diagnostic: record.Diagnostic,
		Devices:    model.Devices(sightings),
		Sightings:  sightings,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		DurationMS: record.Duration().Milliseconds(),
	}
}

// ScanStarted is returned by fire-and-forget scans
type ScanStarted struct {
	ScanID   uuid.UUID `json:"scan_id"`
	ScanType string    `json:"scan_type"`
}

// ConnectResult reports an initiated connection
type ConnectResult struct {
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
}

// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"bt-discovery/internal/model"
)

// ErrNotFound is returned when a scan id is unknown
var ErrNotFound = errors.New("scan not found")

// ScanRepository defines scan history data access operations
type ScanRepository interface {
	Save(ctx context.Context, scan *model.ScanRecord) error
	Get(ctx context.Context, id uuid.UUID) (*model.ScanRecord, error)
	List(ctx context.Context, filter *ScanFilter) ([]*model.ScanRecord, int, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ScanFilter represents scan history listing filters
type ScanFilter struct {
	ScanType string        `json:"scan_type,omitempty" form:"type"`
	Outcome  model.Outcome `json:"outcome,omitempty" form:"outcome"`
	Since    *time.Time    `json:"since,omitempty"`
	Limit    int           `json:"limit" form:"limit"`
	Offset   int           `json:"offset" form:"offset"`
}

func (f *ScanFilter) matches(scan *model.ScanRecord) bool {
	if f == nil {
		return true
	}
	if f.ScanType != "" && scan.ScanType != f.ScanType {
		return false
	}
	if f.Outcome != "" && scan.Outcome != f.Outcome {
		return false
	}
	if f.Since != nil && scan.StartedAt.Before(*f.Since) {
		return false
	}
	return true
}

// page applies offset and limit to n items, returning the bounds
func (f *ScanFilter) page(n int) (int, int) {
	if f == nil {
		return 0, n
	}
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return start, end
}

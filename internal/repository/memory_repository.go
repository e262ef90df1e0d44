// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bt-discovery/internal/model"
)

// memoryScanRepository keeps scan history in process memory
type memoryScanRepository struct {
	mu     sync.RWMutex
	scans  map[uuid.UUID]*model.ScanRecord
	logger *zap.Logger
}

// NewMemoryScanRepository creates a scan repository without persistence
func NewMemoryScanRepository(logger *zap.Logger) ScanRepository {
	return &memoryScanRepository{
		scans:  make(map[uuid.UUID]*model.ScanRecord),
		logger: logger,
	}
}

func cloneScan(scan *model.ScanRecord) *model.ScanRecord {
	c := *scan
	c.Sightings = append([]model.Sighting{}, scan.Sightings...)
	return &c
}

func (r *memoryScanRepository) Save(ctx context.Context, scan *model.ScanRecord) error {
	if scan.ID == uuid.Nil {
		return fmt.Errorf("failed to save scan: missing id")
	}

	r.mu.Lock()
	r.scans[scan.ID] = cloneScan(scan)
	r.mu.Unlock()

	r.logger.Debug("Scan saved", zap.String("scan_id", scan.ID.String()))
	return nil
}

func (r *memoryScanRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scan, ok := r.scans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneScan(scan), nil
}

func (r *memoryScanRepository) List(ctx context.Context, filter *ScanFilter) ([]*model.ScanRecord, int, error) {
	r.mu.RLock()
	matched := make([]*model.ScanRecord, 0, len(r.scans))
	for _, scan := range r.scans {
		if filter.matches(scan) {
			matched = append(matched, scan)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	start, end := filter.page(len(matched))
	page := make([]*model.ScanRecord, 0, end-start)
	for _, scan := range matched[start:end] {
		page = append(page, cloneScan(scan))
	}
	return page, len(matched), nil
}

func (r *memoryScanRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, scan := range r.scans {
		if scan.StartedAt.Before(before) {
			delete(r.scans, id)
			deleted++
		}
	}
	return deleted, nil
}

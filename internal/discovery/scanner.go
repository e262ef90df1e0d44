// 📁 internal/discovery/scanner.go - Main Scanner Interface
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bt-discovery/internal/model"
)

var (
	ErrScannerNotFound     = errors.New("scanner type not found")
	ErrNoScannersAvailable = errors.New("no scanners available")
)

// DeviceScanner interface - Strategy Pattern
type DeviceScanner interface {
	Discover(ctx context.Context) ([]model.Sighting, error)
	GetScannerType() string
	IsAvailable() bool
}

// Classifier assigns a machine type to a sighting
type Classifier interface {
	Classify(s model.Sighting) model.MachineType
}

// ScannerInfo describes a registered scanner
type ScannerInfo struct {
	Type      string `json:"type"`
	Available bool   `json:"available"`
}

// ScanResult is the combined result of a pass over every available scanner
type ScanResult struct {
	Sightings []model.Sighting `json:"sightings"`
	Scanned   []string         `json:"scanned"`
	Failures  map[string]error `json:"-"`
}

// Err is non-nil only when no scanner produced a result
func (r *ScanResult) Err() error {
	if len(r.Scanned) == 0 {
		return ErrNoScannersAvailable
	}
	if len(r.Failures) < len(r.Scanned) {
		return nil
	}
	return errors.New(r.Diagnostic())
}

// Diagnostic joins the failures, ordered by scanner type
func (r *ScanResult) Diagnostic() string {
	if len(r.Scanned) == 0 {
		return ErrNoScannersAvailable.Error()
	}

	types := make([]string, 0, len(r.Failures))
	for t := range r.Failures {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s: %v", t, r.Failures[t]))
	}
	return strings.Join(parts, "; ")
}

// ScannerManager manages all device scanners - Facade Pattern
type ScannerManager struct {
	mu       sync.RWMutex
	order    []string
	scanners map[string]DeviceScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]DeviceScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a device scanner. Re-registering a type replaces
// the scanner but keeps its position.
func (sm *ScannerManager) RegisterScanner(scanner DeviceScanner) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	scannerType := scanner.GetScannerType()
	if _, exists := sm.scanners[scannerType]; !exists {
		sm.order = append(sm.order, scannerType)
	}
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered",
		zap.String("type", scannerType),
		zap.Bool("available", scanner.IsAvailable()),
	)
}

// Get returns the scanner registered for a type
func (sm *ScannerManager) Get(scannerType string) (DeviceScanner, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	scanner, ok := sm.scanners[scannerType]
	return scanner, ok
}

func (sm *ScannerManager) snapshot() []DeviceScanner {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]DeviceScanner, 0, len(sm.order))
	for _, t := range sm.order {
		list = append(list, sm.scanners[t])
	}
	return list
}

// ScanAll scans every available scanner in registration order. A failing
// scanner does not stop the others.
func (sm *ScannerManager) ScanAll(ctx context.Context) *ScanResult {
	result := &ScanResult{
		Sightings: []model.Sighting{},
		Failures:  make(map[string]error),
	}

	for _, scanner := range sm.snapshot() {
		scannerType := scanner.GetScannerType()
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		result.Scanned = append(result.Scanned, scannerType)
		sightings, err := scanner.Discover(ctx)
		if err != nil {
			sm.logger.Warn("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			result.Failures[scannerType] = err
			continue
		}

		result.Sightings = append(result.Sightings, sightings...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("devices_found", len(sightings)),
		)
	}

	return result
}

// ScanByType scans with one scanner. Unavailable scanners still run so that
// their diagnostic reaches the caller.
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]model.Sighting, error) {
	scanner, exists := sm.Get(scannerType)
	if !exists {
		return []model.Sighting{}, fmt.Errorf("%w: %s", ErrScannerNotFound, scannerType)
	}

	sightings, err := scanner.Discover(ctx)
	if sightings == nil {
		sightings = []model.Sighting{}
	}
	return sightings, err
}

// GetAvailableScanners returns list of available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for _, scanner := range sm.snapshot() {
		if scanner.IsAvailable() {
			available = append(available, scanner.GetScannerType())
		}
	}
	return available
}

// Scanners describes every registered scanner in registration order
func (sm *ScannerManager) Scanners() []ScannerInfo {
	list := sm.snapshot()
	infos := make([]ScannerInfo, 0, len(list))
	for _, scanner := range list {
		infos = append(infos, ScannerInfo{
			Type:      scanner.GetScannerType(),
			Available: scanner.IsAvailable(),
		})
	}
	return infos
}

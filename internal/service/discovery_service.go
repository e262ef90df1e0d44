// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/config"
	"bt-discovery/internal/discovery"
	"bt-discovery/internal/events"
	"bt-discovery/internal/model"
	"bt-discovery/internal/repository"
	"bt-discovery/internal/utils"
)

// ScanTypeAll scans every available source
const ScanTypeAll = "all"

// ScanTypes lists the accepted scan types
var ScanTypes = []string{
	model.SourceBluetooth,
	model.SourceBLE,
	model.SourceSerial,
	model.SourceUSB,
	ScanTypeAll,
}

var (
	ErrScanInProgress    = errors.New("a scan is already in progress")
	ErrUnknownScanType   = errors.New("unknown scan type")
	ErrConnectorMissing  = errors.New("the active bluetooth backend cannot initiate connections")
	ErrScannerNotEnabled = errors.New("scanner not enabled")
)

// DiscoveryService runs discovery passes one at a time, records them in the
// scan history and publishes their progress
type DiscoveryService struct {
	scannerManager *discovery.ScannerManager
	connector      bluetooth.Connector
	scanRepo       repository.ScanRepository
	publisher      events.Publisher
	config         *config.Config
	logger         *utils.ServiceLogger

	// held for the whole pass, including async ones
	scanMu sync.Mutex
	wg     sync.WaitGroup
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(
	scanners *Scanners,
	scanRepo repository.ScanRepository,
	publisher events.Publisher,
	config *config.Config,
	logger *zap.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		scannerManager: scanners.Manager,
		connector:      scanners.Connector,
		scanRepo:       scanRepo,
		publisher:      publisher,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}
}

// ScanDevices runs one synchronous pass. A failed pass is not an error: it
// is reported with OutcomeFailed and a diagnostic. Errors are returned only
// when the pass could not start.
func (ds *DiscoveryService) ScanDevices(ctx context.Context, req *ScanRequest) (*ScanReport, error) {
	scanType, err := ds.resolveScanType(req)
	if err != nil {
		return nil, err
	}

	if !ds.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer ds.scanMu.Unlock()

	return ds.runScan(ctx, uuid.New(), scanType), nil
}

// StartScan starts a pass in the background and returns its id and the
// resolved scan type. The result is delivered through scan events and the
// scan history.
func (ds *DiscoveryService) StartScan(req *ScanRequest) (*ScanStarted, error) {
	scanType, err := ds.resolveScanType(req)
	if err != nil {
		return nil, err
	}

	if !ds.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}

	id := uuid.New()
	ds.wg.Add(1)
	go func() {
		defer ds.wg.Done()
		defer ds.scanMu.Unlock()
		ds.runScan(context.Background(), id, scanType)
	}()

	return &ScanStarted{ScanID: id, ScanType: scanType}, nil
}

// Wait blocks until background scans have finished
func (ds *DiscoveryService) Wait() {
	ds.wg.Wait()
}

func (ds *DiscoveryService) resolveScanType(req *ScanRequest) (string, error) {
	scanType := ds.config.Discovery.DefaultType
	if req != nil && req.ScanType != "" {
		scanType = strings.ToLower(strings.TrimSpace(req.ScanType))
	}

	if !slices.Contains(ScanTypes, scanType) {
		return "", fmt.Errorf("%w: %s", ErrUnknownScanType, scanType)
	}
	if scanType != ScanTypeAll {
		if _, ok := ds.scannerManager.Get(scanType); !ok {
			return "", fmt.Errorf("%w: %s", ErrScannerNotEnabled, scanType)
		}
	}
	return scanType, nil
}

// runScan performs the pass; the caller holds scanMu
func (ds *DiscoveryService) runScan(ctx context.Context, id uuid.UUID, scanType string) *ScanReport {
	opLogger := utils.NewOperationLogger(ds.logger.Logger, "scan", id.String())
	opLogger.Start(zap.String("scan_type", scanType))

	record := &model.ScanRecord{
		ID:        id,
		ScanType:  scanType,
		Backend:   ds.backendOf(scanType),
		StartedAt: time.Now().UTC(),
	}

	ds.publish(events.ScanStarted, map[string]interface{}{
		"scan_id":   id.String(),
		"scan_type": scanType,
		"backend":   record.Backend,
	})

	scanCtx := ctx
	if timeout := ds.config.Discovery.ScanTimeout; timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sightings, diagnostic, err := ds.discover(scanCtx, scanType)
	if err != nil {
		sightings = []model.Sighting{}
	}

	record.FinishedAt = time.Now().UTC()
	record.Sightings = sightings
	record.Outcome = model.OutcomeOf(len(sightings), err)
	record.Diagnostic = diagnostic

	if saveErr := ds.scanRepo.Save(context.WithoutCancel(ctx), record); saveErr != nil {
		utils.LogError(ds.logger.Logger, "Failed to record scan", saveErr, zap.String("scan_id", id.String()))
	}

	report := NewScanReport(record)
	switch record.Outcome {
	case model.OutcomeFailed:
		opLogger.Warn(err, zap.String("scan_type", scanType), zap.String("diagnostic", diagnostic))
		ds.publish(events.ScanFailed, map[string]interface{}{
			"scan_id":    id.String(),
			"scan_type":  scanType,
			"diagnostic": diagnostic,
		})
	default:
		opLogger.Success(
			zap.String("scan_type", scanType),
			zap.String("outcome", string(record.Outcome)),
			zap.Int("devices_found", len(sightings)),
		)
		ds.publish(events.ScanCompleted, map[string]interface{}{
			"scan_id":    id.String(),
			"scan_type":  scanType,
			"outcome":    string(record.Outcome),
			"diagnostic": diagnostic,
			"devices":    report.Devices,
			"sightings":  report.Sightings,
		})
	}

	return report
}

// discover returns the sightings, the human readable diagnostic and the
// error that makes the pass a failure
func (ds *DiscoveryService) discover(ctx context.Context, scanType string) ([]model.Sighting, string, error) {
	if scanType == ScanTypeAll {
		result := ds.scannerManager.ScanAll(ctx)
		diagnostic := ""
		if len(result.Failures) > 0 || len(result.Scanned) == 0 {
			diagnostic = result.Diagnostic()
		}
		return result.Sightings, diagnostic, result.Err()
	}

	sightings, err := ds.scannerManager.ScanByType(ctx, scanType)
	if err == nil {
		return sightings, "", nil
	}

	diagnostic := err.Error()
	if scanType == model.SourceBluetooth || scanType == model.SourceBLE {
		diagnostic = bluetooth.Diagnostic(err)
	}
	return sightings, diagnostic, err
}

func (ds *DiscoveryService) backendOf(scanType string) string {
	if scanType == ScanTypeAll {
		return strings.Join(ds.scannerManager.GetAvailableScanners(), ",")
	}

	scanner, ok := ds.scannerManager.Get(scanType)
	if !ok {
		return scanType
	}
	if b, ok := scanner.(interface{ Backend() bluetooth.Backend }); ok {
		return b.Backend().Name()
	}
	return scanType
}

// Connect initiates a connection to a device identified by UUID or MAC
func (ds *DiscoveryService) Connect(ctx context.Context, identifier string) (string, error) {
	if ds.connector == nil {
		return "", ErrConnectorMissing
	}

	normalized, err := bluetooth.NormalizeIdentifier(identifier)
	if err != nil {
		return "", err
	}

	opLogger := utils.NewOperationLogger(ds.logger.Logger, "connect", normalized)
	opLogger.Start()

	if timeout := ds.config.Bluetooth.ConnectTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := ds.connector.Connect(ctx, normalized); err != nil {
		opLogger.Error(err)
		return "", fmt.Errorf("failed to connect to %s: %w", normalized, err)
	}

	opLogger.Success()
	ds.publish(events.DeviceConnected, map[string]interface{}{
		"identifier": normalized,
	})
	return normalized, nil
}

// Disconnect drops the current connection
func (ds *DiscoveryService) Disconnect(ctx context.Context) error {
	if ds.connector == nil {
		return ErrConnectorMissing
	}

	if err := ds.connector.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	ds.logger.Info("Device disconnected")
	ds.publish(events.DeviceDisconnected, nil)
	return nil
}

// CanConnect reports whether a connector is configured
func (ds *DiscoveryService) CanConnect() bool {
	return ds.connector != nil
}

// Scanners describes the registered discovery sources
func (ds *DiscoveryService) Scanners() []discovery.ScannerInfo {
	return ds.scannerManager.Scanners()
}

// History lists recorded scans, newest first
func (ds *DiscoveryService) History(ctx context.Context, filter *repository.ScanFilter) ([]*model.ScanRecord, int, error) {
	if filter == nil {
		filter = &repository.ScanFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = ds.config.History.DefaultLimit
	}

	scans, total, err := ds.scanRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, total, nil
}

// GetScan returns one recorded scan
func (ds *DiscoveryService) GetScan(ctx context.Context, id uuid.UUID) (*model.ScanRecord, error) {
	return ds.scanRepo.Get(ctx, id)
}

// CleanupHistory removes scans older than the retention period
func (ds *DiscoveryService) CleanupHistory(ctx context.Context) (int64, error) {
	retention := ds.config.History.Retention
	if retention <= 0 {
		return 0, nil
	}

	deleted, err := ds.scanRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("history cleanup failed: %w", err)
	}
	return deleted, nil
}

func (ds *DiscoveryService) publish(eventType string, data map[string]interface{}) {
	if ds.publisher == nil {
		return
	}
	ds.publisher.Publish(events.NewEvent(eventType, "discovery-service", data))
}

// internal/service/scanners.go
package service

import (
	"fmt"

	"go.uber.org/zap"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/config"
	"bt-discovery/internal/discovery"
	"bt-discovery/internal/discovery/serial"
	"bt-discovery/internal/discovery/usb"
)

// Scanners bundles the registered discovery sources with the connector of
// the Bluetooth backend, when it has one.
type Scanners struct {
	Manager   *discovery.ScannerManager
	Connector bluetooth.Connector
	Backend   string
}

// BuildScanners selects the Bluetooth backend once and registers every
// enabled discovery source
func BuildScanners(cfg *config.Config, classifier discovery.Classifier, logger *zap.Logger) (*Scanners, error) {
	manager := discovery.NewScannerManager(logger)
	inquiry := cfg.Bluetooth.Inquiry()

	backend, err := bluetooth.NewBackend(cfg.Bluetooth.Backend, inquiry)
	if err != nil {
		return nil, fmt.Errorf("failed to select bluetooth backend: %w", err)
	}

	scanners := &Scanners{
		Manager: manager,
		Backend: backend.Name(),
	}

	manager.RegisterScanner(bluetooth.NewScanner(backend,
		bluetooth.WithClassifier(classifier),
		bluetooth.WithLogger(logger),
	))
	if c, ok := backend.(bluetooth.Connector); ok {
		scanners.Connector = c
	}

	if cfg.Bluetooth.BLEEnabled && backend.Name() != bluetooth.BackendBLE {
		ble, err := bluetooth.NewBackend(bluetooth.BackendBLE, inquiry)
		if err != nil {
			logger.Warn("Low-energy scanning not available", zap.Error(err))
		} else {
			manager.RegisterScanner(bluetooth.NewScanner(ble,
				bluetooth.WithClassifier(classifier),
				bluetooth.WithLogger(logger),
			))
			if c, ok := ble.(bluetooth.Connector); ok && scanners.Connector == nil {
				scanners.Connector = c
			}
		}
	}

	if cfg.Discovery.Serial.Enabled {
		manager.RegisterScanner(serial.NewScanner(logger, serial.WithClassifier(classifier)))
	}
	if cfg.Discovery.USB.Enabled {
		manager.RegisterScanner(usb.NewScanner(logger, usb.WithClassifier(classifier)))
	}

	logger.Info("Discovery scanners initialized",
		zap.String("bluetooth_backend", backend.Name()),
		zap.Strings("available_scanners", manager.GetAvailableScanners()),
	)
	return scanners, nil
}

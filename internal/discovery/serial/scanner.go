// 📁 internal/discovery/serial/scanner.go - Serial Scanner Implementation
package serial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"bt-discovery/internal/discovery"
	"bt-discovery/internal/model"
)

// PortLister enumerates the serial ports of the host
type PortLister func() ([]*enumerator.PortDetails, error)

// Scanner reports serial/COM ports as devices. Ports bound to a Bluetooth
// serial profile are reported as BT, USB adapters as USB.
type Scanner struct {
	logger     *zap.Logger
	lister     PortLister
	classifier discovery.Classifier
}

// Option configures the scanner
type Option func(*Scanner)

// WithLister replaces the system port enumerator
func WithLister(lister PortLister) Option {
	return func(s *Scanner) { s.lister = lister }
}

// WithClassifier sets the machine type classifier
func WithClassifier(c discovery.Classifier) Option {
	return func(s *Scanner) { s.classifier = c }
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		logger: logger.With(zap.String("scanner", model.SourceSerial)),
		lister: enumerator.GetDetailedPortsList,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return model.SourceSerial
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	// port enumeration works on every supported platform
	return true
}

// Discover lists the serial ports
func (s *Scanner) Discover(ctx context.Context) ([]model.Sighting, error) {
	start := time.Now()
	s.logger.Debug("Starting serial port scan")

	if err := ctx.Err(); err != nil {
		return []model.Sighting{}, err
	}

	ports, err := s.lister()
	if err != nil {
		return []model.Sighting{}, fmt.Errorf("failed to get serial ports: %w", err)
	}

	counters := make(map[model.InterfaceType]int32)
	sightings := make([]model.Sighting, 0, len(ports))
	for _, port := range ports {
		if port == nil || port.Name == "" {
			continue
		}

		iface := InterfaceOf(port)
		sg := model.Sighting{
			Source:  model.SourceSerial,
			Address: port.Name,
			Device: model.DeviceInfo{
				ComPortName:    port.Name,
				InterfaceType:  iface,
				InterfaceIndex: counters[iface],
				MachineType:    model.MachineUnknown,
			},
		}
		counters[iface]++

		if iface == model.InterfaceBT {
			sg.Device.BTFriendlyName = port.Product
		}
		if s.classifier != nil {
			sg.Device.MachineType = s.classifier.Classify(sg)
		}

		s.logger.Debug("Serial port found",
			zap.String("port", port.Name),
			zap.String("interface", iface.String()),
			zap.Bool("usb", port.IsUSB),
			zap.String("vid", port.VID),
			zap.String("pid", port.PID),
		)
		sightings = append(sightings, sg)
	}

	s.logger.Info("Serial scan completed",
		zap.Int("devices_found", len(sightings)),
		zap.Duration("duration", time.Since(start)),
	)
	return sightings, nil
}

// InterfaceOf classifies how a serial port is attached
func InterfaceOf(port *enumerator.PortDetails) model.InterfaceType {
	name := strings.ToLower(port.Name)
	product := strings.ToLower(port.Product)

	switch {
	case strings.Contains(name, "rfcomm"),
		strings.Contains(name, "bluetooth"),
		strings.Contains(product, "bluetooth"):
		return model.InterfaceBT
	case port.IsUSB:
		return model.InterfaceUSB
	default:
		return model.InterfaceUnknown
	}
}

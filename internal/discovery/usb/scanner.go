// 📁 internal/discovery/usb/scanner.go - USB HID Scanner Implementation
package usb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"bt-discovery/internal/discovery"
	"bt-discovery/internal/model"
)

// Descriptor is the part of a USB device descriptor the scanner reports
type Descriptor struct {
	Bus     int
	Address int
	Vendor  gousb.ID
	Product gousb.ID
	Name    string
}

// ID returns vid:pid in lowercase hex
func (d Descriptor) ID() string {
	return fmt.Sprintf("%s:%s", d.Vendor, d.Product)
}

// Enumerator lists the HID devices attached to the host
type Enumerator func(ctx context.Context) ([]Descriptor, error)

// Scanner reports USB HID devices
type Scanner struct {
	logger     *zap.Logger
	enumerate  Enumerator
	classifier discovery.Classifier
}

// Option configures the scanner
type Option func(*Scanner)

// WithEnumerator replaces the libusb enumerator
func WithEnumerator(e Enumerator) Option {
	return func(s *Scanner) { s.enumerate = e }
}

// WithClassifier sets the machine type classifier
func WithClassifier(c discovery.Classifier) Option {
	return func(s *Scanner) { s.classifier = c }
}

// NewScanner creates a new USB HID scanner
func NewScanner(logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		logger: logger.With(zap.String("scanner", model.SourceUSB)),
	}
	s.enumerate = s.libusbEnumerate
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return model.SourceUSB
}

// IsAvailable checks if USB scanning is available on this system
func (s *Scanner) IsAvailable() bool {
	return true
}

// Discover enumerates USB HID devices
func (s *Scanner) Discover(ctx context.Context) ([]model.Sighting, error) {
	start := time.Now()
	s.logger.Debug("Starting USB HID scan")

	descs, err := s.enumerate(ctx)
	if err != nil {
		return []model.Sighting{}, fmt.Errorf("device enumeration failed: %w", err)
	}

	sightings := make([]model.Sighting, 0, len(descs))
	for i, d := range descs {
		sg := model.Sighting{
			Source:  model.SourceUSB,
			Address: d.ID(),
			Device: model.DeviceInfo{
				BTFriendlyName: d.Name,
				InterfaceType:  model.InterfaceUSBHID,
				InterfaceIndex: int32(i),
				MachineType:    model.MachineUnknown,
			},
		}
		if s.classifier != nil {
			sg.Device.MachineType = s.classifier.Classify(sg)
		}
		sightings = append(sightings, sg)
	}

	s.logger.Info("USB scan completed",
		zap.Int("devices_found", len(sightings)),
		zap.Duration("scan_duration", time.Since(start)),
	)
	return sightings, nil
}

// libusbEnumerate opens every HID device long enough to read its product
// string, then closes it.
func (s *Scanner) libusbEnumerate(ctx context.Context) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsHID(desc)
	})
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err != nil {
		// some devices could not be opened (permissions); keep the rest
		s.logger.Warn("Some USB devices could not be opened", zap.Error(err))
	}

	descs := make([]Descriptor, 0, len(devices))
	for _, d := range devices {
		name, nameErr := d.Product()
		if nameErr != nil {
			s.logger.Debug("Failed to read product string",
				zap.String("id", fmt.Sprintf("%s:%s", d.Desc.Vendor, d.Desc.Product)),
				zap.Error(nameErr),
			)
		}
		descs = append(descs, Descriptor{
			Bus:     d.Desc.Bus,
			Address: d.Desc.Address,
			Vendor:  d.Desc.Vendor,
			Product: d.Desc.Product,
			Name:    name,
		})
	}
	return descs, nil
}

// IsHID reports whether the device or any of its interfaces is HID class
func IsHID(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassHID {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassHID {
					return true
				}
			}
		}
	}
	return false
}

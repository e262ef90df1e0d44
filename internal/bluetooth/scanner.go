// 📁 internal/bluetooth/scanner.go - Canonical Bluetooth Scanner
package bluetooth

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"bt-discovery/internal/model"
)

// Classifier assigns a machine type to a sighting
type Classifier interface {
	Classify(s model.Sighting) model.MachineType
}

// Scanner performs one bounded discovery pass through a backend and maps the
// raw records to DeviceInfo values in the order the backend reported them.
type Scanner struct {
	backend    Backend
	source     string
	classifier Classifier
	logger     *zap.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithSource overrides the source name reported in sightings
func WithSource(source string) Option {
	return func(s *Scanner) { s.source = source }
}

// WithClassifier sets the machine type classifier
func WithClassifier(c Classifier) Option {
	return func(s *Scanner) { s.classifier = c }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// NewScanner creates a scanner over backend
func NewScanner(backend Backend, opts ...Option) *Scanner {
	s := &Scanner{
		backend: backend,
		source:  model.SourceBluetooth,
		logger:  zap.NewNop(),
	}
	if backend.Name() == BackendBLE {
		s.source = model.SourceBLE
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(
		zap.String("scanner", s.source),
		zap.String("backend", backend.Name()),
	)
	return s
}

// Backend returns the active backend
func (s *Scanner) Backend() Backend { return s.backend }

// GetScannerType returns the source name
func (s *Scanner) GetScannerType() string { return s.source }

// IsAvailable reports false only for backends that can never find devices here
func (s *Scanner) IsAvailable() bool {
	if a, ok := s.backend.(Availability); ok {
		return a.Available()
	}
	return true
}

// Discover runs one pass and returns the sightings. The slice is never nil
// and is empty whenever err is non-nil.
func (s *Scanner) Discover(ctx context.Context) ([]model.Sighting, error) {
	start := time.Now()
	s.logger.Debug("Starting bluetooth inquiry")

	records, err := s.backend.Inquire(ctx)
	if err != nil {
		if IsUnavailable(err) {
			s.logger.Warn("Bluetooth scan unavailable", zap.Error(err))
		} else {
			s.logger.Error("Bluetooth inquiry failed", zap.Error(err))
		}
		return []model.Sighting{}, err
	}

	sightings := make([]model.Sighting, 0, len(records))
	for i, rec := range records {
		sightings = append(sightings, s.sighting(i, rec))
	}

	s.logger.Info("Bluetooth inquiry completed",
		zap.Int("devices_found", len(sightings)),
		zap.Duration("duration", time.Since(start)),
	)
	return sightings, nil
}

func (s *Scanner) sighting(ordinal int, rec Record) model.Sighting {
	name := rec.Name
	if name == "" {
		name = rec.Address
	}

	sg := model.Sighting{
		Source:  s.source,
		Address: rec.Address,
		Device: model.DeviceInfo{
			BTFriendlyName: name,
			InterfaceType:  model.InterfaceBT,
			InterfaceIndex: int32(ordinal),
			MachineType:    model.MachineUnknown,
		},
	}
	if s.classifier != nil {
		sg.Device.MachineType = s.classifier.Classify(sg)
	}
	return sg
}

// Scan runs one pass and returns the devices. The slice is never nil; the
// error is the diagnostic for an empty result.
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceInfo, error) {
	sightings, err := s.Discover(ctx)
	return model.Devices(sightings), err
}

// ScanAndPrint runs one pass and writes a line per device to out.
// Diagnostics go to errOut.
func (s *Scanner) ScanAndPrint(ctx context.Context, out, errOut io.Writer) {
	sightings, err := s.Discover(ctx)
	if err != nil {
		fmt.Fprintln(errOut, Diagnostic(err))
		return
	}
	if len(sightings) == 0 {
		fmt.Fprintln(out, "No Bluetooth devices found.")
		return
	}
	for _, sg := range sightings {
		fmt.Fprintln(out, FormatSighting(sg))
	}
}

// FormatSighting renders the console line for a sighting
func FormatSighting(sg model.Sighting) string {
	name := sg.Device.BTFriendlyName
	if name == "" || name == sg.Address {
		return "Bluetooth device found: " + sg.Address
	}
	return fmt.Sprintf("Bluetooth device found: %s - %s", name, sg.Address)
}

// Diagnostic renders the console line for a scan error
func Diagnostic(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUnavailable(err):
		return err.Error()
	default:
		return "Bluetooth scan failed: " + err.Error()
	}
}

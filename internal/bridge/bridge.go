// internal/bridge/bridge.go
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/config"
	"bt-discovery/internal/model"
)

// DeviceScanner runs one discovery pass
type DeviceScanner interface {
	Scan(ctx context.Context) ([]model.DeviceInfo, error)
}

// ScanCallback receives the JSON array produced by an asynchronous scan. The
// string is only valid while the callback runs.
type ScanCallback func(json string)

// Bridge is the host-facing surface over one scanner and an optional
// connector. Every scan result is encoded with model.EncodeList.
type Bridge struct {
	scanner        DeviceScanner
	connector      bluetooth.Connector
	connectTimeout time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	callback ScanCallback
	// buffer returned by ScanJSON, owned by the bridge
	last []byte

	wg sync.WaitGroup
}

// Option configures a Bridge
type Option func(*Bridge)

// WithConnector sets the connector used by Connect and Disconnect
func WithConnector(c bluetooth.Connector) Option {
	return func(b *Bridge) { b.connector = c }
}

// WithConnectTimeout bounds Connect
func WithConnectTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.connectTimeout = d }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// New creates a bridge over scanner
func New(scanner DeviceScanner, opts ...Option) *Bridge {
	b := &Bridge{
		scanner: scanner,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("component", "bridge"))
	return b
}

// NewFromConfig builds a bridge over the low-energy backend when this build
// has one, otherwise over the configured Bluetooth backend
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Bridge, error) {
	inquiry := cfg.Bluetooth.Inquiry()

	backend, err := bluetooth.NewBackend(bluetooth.BackendBLE, inquiry)
	if err != nil {
		backend, err = bluetooth.NewBackend(cfg.Bluetooth.Backend, inquiry)
		if err != nil {
			return nil, fmt.Errorf("bridge: %w", err)
		}
	}

	opts := []Option{
		WithLogger(logger),
		WithConnectTimeout(cfg.Bluetooth.ConnectTimeout),
	}
	if c, ok := backend.(bluetooth.Connector); ok {
		opts = append(opts, WithConnector(c))
	}
	return New(bluetooth.NewScanner(backend, bluetooth.WithLogger(logger)), opts...), nil
}

// RegisterScanCallback sets the receiver of asynchronous scan results. A nil
// callback discards them.
func (b *Bridge) RegisterScanCallback(cb ScanCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callback = cb
}

// StartScan runs a pass in the background and delivers the result to the
// registered callback
func (b *Bridge) StartScan() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		data := b.scan()

		b.mu.Lock()
		cb := b.callback
		b.mu.Unlock()

		if cb == nil {
			b.logger.Debug("Scan finished with no callback registered")
			return
		}
		cb(string(data))
	}()
}

// Wait blocks until asynchronous scans have delivered their results
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// ScanJSON runs a pass and returns the JSON array. The bridge owns the
// returned slice; it stays valid until the next ScanJSON or Release call.
func (b *Bridge) ScanJSON() []byte {
	data := b.scan()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = data
	return b.last
}

// Release drops the buffer returned by the last ScanJSON call
func (b *Bridge) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = nil
}

// ScanJSONInto runs a pass and copies the JSON array, NUL terminated, into
// buf. It returns the length without the terminator, or -1 when buf cannot
// hold the result.
func (b *Bridge) ScanJSONInto(buf []byte) int {
	if len(buf) == 0 {
		return -1
	}
	return CopyTerminated(buf, b.scan())
}

// CopyTerminated copies data and a trailing NUL into buf and returns
// len(data), or -1 when buf is too small
func CopyTerminated(buf, data []byte) int {
	if len(buf) < len(data)+1 {
		return -1
	}
	n := copy(buf, data)
	buf[n] = 0
	return n
}

func (b *Bridge) scan() []byte {
	devices, err := b.scanner.Scan(context.Background())
	if err != nil {
		b.logger.Warn("Scan failed", zap.String("diagnostic", bluetooth.Diagnostic(err)))
	}

	data, encErr := model.EncodeList(devices)
	if encErr != nil {
		b.logger.Error("Failed to encode devices", zap.Error(encErr))
		return []byte("[]")
	}
	return data
}

// Connect initiates a connection to a peripheral UUID or MAC address.
// Failures are logged; there is no result for the host.
func (b *Bridge) Connect(identifier string) {
	if err := b.connect(identifier); err != nil {
		b.logger.Warn("Connect failed", zap.String("identifier", identifier), zap.Error(err))
	}
}

func (b *Bridge) connect(identifier string) error {
	if b.connector == nil {
		return bluetooth.ErrUnsupportedOperation
	}

	id, err := bluetooth.NormalizeIdentifier(identifier)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if b.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.connectTimeout)
		defer cancel()
	}

	if err := b.connector.Connect(ctx, id); err != nil {
		return err
	}
	b.logger.Info("Connected", zap.String("identifier", id))
	return nil
}

// Disconnect drops the current connection, if any
func (b *Bridge) Disconnect() {
	if b.connector == nil {
		return
	}
	if err := b.connector.Disconnect(); err != nil {
		b.logger.Debug("Disconnect", zap.Error(err))
	}
}

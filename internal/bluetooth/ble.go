//go:build linux || darwin || windows

// internal/bluetooth/ble.go
package bluetooth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tinyble "tinygo.org/x/bluetooth"
)

func init() {
	Register(BackendBLE, func(cfg InquiryConfig) (Backend, error) {
		return NewBLEBackend(tinyble.DefaultAdapter, cfg), nil
	})
}

// LEAdapter is the part of a low-energy adapter the backend drives.
// *tinyble.Adapter implements it.
type LEAdapter interface {
	Enable() error
	Scan(callback func(*tinyble.Adapter, tinyble.ScanResult)) error
	StopScan() error
	Connect(address tinyble.Address, params tinyble.ConnectionParams) (tinyble.Device, error)
}

// stopRetryInterval spaces StopScan attempts made before the adapter has
// entered its scan.
var stopRetryInterval = 50 * time.Millisecond

// BLEBackend scans for low-energy advertisements and can connect to one
// peripheral at a time.
type BLEBackend struct {
	adapter        LEAdapter
	scanDuration   time.Duration
	connectTimeout time.Duration

	enableOnce sync.Once
	enableErr  error

	// scanMu serialises use of the adapter's single scan slot
	scanMu sync.Mutex

	mu          sync.Mutex
	device      tinyble.Device
	connectedID string
}

// NewBLEBackend creates a backend on the given adapter
func NewBLEBackend(adapter LEAdapter, cfg InquiryConfig) *BLEBackend {
	cfg = cfg.WithDefaults()
	return &BLEBackend{
		adapter:        adapter,
		scanDuration:   cfg.LEScanDuration,
		connectTimeout: cfg.ConnectTimeout,
	}
}

func (b *BLEBackend) Name() string { return BackendBLE }

func (b *BLEBackend) enable() error {
	b.enableOnce.Do(func() {
		b.enableErr = b.adapter.Enable()
	})
	if b.enableErr != nil {
		return fmt.Errorf("%w: %v", ErrAdapterUnavailable, b.enableErr)
	}
	return nil
}

// Inquire scans for the configured duration and reports every advertising
// peripheral once, in order of first sighting.
func (b *BLEBackend) Inquire(ctx context.Context) ([]Record, error) {
	if err := b.enable(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		seen    = make(map[string]bool)
		records = []Record{}
	)

	err := b.scan(ctx, b.scanDuration, func(result tinyble.ScanResult) bool {
		addr := strings.ToUpper(result.Address.String())

		mu.Lock()
		defer mu.Unlock()

		if !seen[addr] {
			seen[addr] = true
			records = append(records, Record{
				Address: addr,
				Name:    result.LocalName(),
				RSSI:    int(result.RSSI),
			})
		}
		return false
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrInquiryFailed, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return records, nil
}

// scan runs one adapter scan until the duration elapses, ctx is done or
// visit returns true. A scan cut short by ctx returns ctx.Err().
func (b *BLEBackend) scan(ctx context.Context, duration time.Duration, visit func(tinyble.ScanResult) bool) error {
	b.scanMu.Lock()
	defer b.scanMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var once sync.Once
	stopRequested := make(chan struct{})
	requestStop := func() {
		once.Do(func() { close(stopRequested) })
	}

	scanned := make(chan struct{})
	go b.stopScanWhen(ctx, duration, stopRequested, scanned)

	err := b.adapter.Scan(func(_ *tinyble.Adapter, result tinyble.ScanResult) {
		if visit(result) {
			requestStop()
		}
	})
	close(scanned)

	if err != nil {
		return err
	}
	return ctx.Err()
}

// stopScanWhen stops the running scan once the duration elapses, ctx is
// done or a stop is requested. StopScan fails until the adapter is actually
// scanning, so it is retried until one call succeeds or Scan has returned.
func (b *BLEBackend) stopScanWhen(ctx context.Context, duration time.Duration, stopRequested, scanned <-chan struct{}) {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-scanned:
		return
	case <-stopRequested:
	case <-ctx.Done():
	case <-timer.C:
	}

	ticker := time.NewTicker(stopRetryInterval)
	defer ticker.Stop()

	for {
		if err := b.adapter.StopScan(); err == nil {
			return
		}
		select {
		case <-scanned:
			return
		case <-ticker.C:
		}
	}
}

// Connect searches for the peripheral and connects to it. A previously
// connected peripheral is disconnected first.
func (b *BLEBackend) Connect(ctx context.Context, identifier string) error {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return err
	}
	if err := b.enable(); err != nil {
		return err
	}

	var (
		found  tinyble.Address
		seenID bool
	)
	err = b.scan(ctx, b.connectTimeout, func(result tinyble.ScanResult) bool {
		if strings.EqualFold(result.Address.String(), id) {
			found = result.Address
			seenID = true
			return true
		}
		return false
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrInquiryFailed, err)
	}
	if !seenID {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	_ = b.Disconnect()

	device, err := b.adapter.Connect(found, tinyble.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", id, err)
	}

	b.mu.Lock()
	b.device = device
	b.connectedID = id
	b.mu.Unlock()
	return nil
}

// Disconnect drops the current connection
func (b *BLEBackend) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connectedID == "" {
		return ErrNotConnected
	}

	err := b.device.Disconnect()
	b.device = tinyble.Device{}
	b.connectedID = ""
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Connected returns the identifier of the connected peripheral
func (b *BLEBackend) Connected() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectedID
}

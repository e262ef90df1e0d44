//go:build linux || darwin || windows

package bluetooth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tinyble "tinygo.org/x/bluetooth"
)

// fakeLEAdapter behaves like the platform adapters: Scan blocks until
// StopScan, and StopScan fails while no scan is running.
type fakeLEAdapter struct {
	mu           sync.Mutex
	enableErr    error
	results      []tinyble.ScanResult
	beforeScan   func()
	cancelScan   chan struct{}
	scans        int
	stopAttempts int
	attempted    chan struct{}
}

func newFakeLEAdapter() *fakeLEAdapter {
	return &fakeLEAdapter{attempted: make(chan struct{})}
}

func (a *fakeLEAdapter) Enable() error { return a.enableErr }

func (a *fakeLEAdapter) Scan(callback func(*tinyble.Adapter, tinyble.ScanResult)) error {
	if a.beforeScan != nil {
		a.beforeScan()
	}

	a.mu.Lock()
	if a.cancelScan != nil {
		a.mu.Unlock()
		return errors.New("already scanning")
	}
	cancel := make(chan struct{})
	a.cancelScan = cancel
	a.scans++
	a.mu.Unlock()

	for _, result := range a.results {
		callback(nil, result)
	}
	<-cancel
	return nil
}

func (a *fakeLEAdapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopAttempts++
	if a.stopAttempts == 1 {
		close(a.attempted)
	}
	if a.cancelScan == nil {
		return errors.New("not scanning")
	}
	close(a.cancelScan)
	a.cancelScan = nil
	return nil
}

func (a *fakeLEAdapter) Connect(tinyble.Address, tinyble.ConnectionParams) (tinyble.Device, error) {
	return tinyble.Device{}, errors.New("connect not supported")
}

func (a *fakeLEAdapter) scanCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scans
}

// inquireWithin runs Inquire and fails the test if it does not return in time
func inquireWithin(t *testing.T, ctx context.Context, b *BLEBackend, limit time.Duration) ([]Record, error) {
	t.Helper()

	type result struct {
		records []Record
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, err := b.Inquire(ctx)
		done <- result{records, err}
	}()

	select {
	case r := <-done:
		return r.records, r.err
	case <-time.After(limit):
		t.Fatal("inquiry did not return")
		return nil, nil
	}
}

func TestBLEBackend_ScanEndsAfterDuration(t *testing.T) {
	adapter := newFakeLEAdapter()
	b := NewBLEBackend(adapter, InquiryConfig{LEScanDuration: 20 * time.Millisecond})

	records, err := inquireWithin(t, context.Background(), b, 2*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	_, err = inquireWithin(t, context.Background(), b, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.scanCount())
}

func TestBLEBackend_CancelledBeforeScan(t *testing.T) {
	adapter := newFakeLEAdapter()
	b := NewBLEBackend(adapter, InquiryConfig{LEScanDuration: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inquireWithin(t, ctx, b, 2*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, adapter.scanCount())
}

func TestBLEBackend_CancelledWhileScanStarts(t *testing.T) {
	adapter := newFakeLEAdapter()
	b := NewBLEBackend(adapter, InquiryConfig{LEScanDuration: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The cancellation lands after the ctx check but before the adapter is
	// scanning, so the first StopScan fails.
	adapter.beforeScan = func() {
		adapter.beforeScan = nil
		cancel()
		<-adapter.attempted
	}

	_, err := inquireWithin(t, ctx, b, 2*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, adapter.scanCount())

	// The scan slot is free again
	b.scanDuration = 10 * time.Millisecond
	_, err = inquireWithin(t, context.Background(), b, 2*time.Second)
	require.NoError(t, err)
}

func TestBLEBackend_EnableFailure(t *testing.T) {
	adapter := newFakeLEAdapter()
	adapter.enableErr = errors.New("no adapter")
	b := NewBLEBackend(adapter, InquiryConfig{})

	_, err := b.Inquire(context.Background())
	assert.ErrorIs(t, err, ErrAdapterUnavailable)

	err = b.Connect(context.Background(), "AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, ErrAdapterUnavailable)
	assert.Zero(t, adapter.scanCount())
}

func TestBLEBackend_ConnectDeviceNotFound(t *testing.T) {
	adapter := newFakeLEAdapter()
	adapter.results = []tinyble.ScanResult{{}}
	b := NewBLEBackend(adapter, InquiryConfig{ConnectTimeout: 20 * time.Millisecond})

	err := b.Connect(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	err = b.Connect(context.Background(), "AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Empty(t, b.Connected())
	assert.ErrorIs(t, b.Disconnect(), ErrNotConnected)
}

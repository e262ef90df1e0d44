package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bt-discovery/internal/model"
)

type stubScanner struct {
	kind      string
	available bool
	sightings []model.Sighting
	err       error
	calls     int
}

func (s *stubScanner) Discover(context.Context) ([]model.Sighting, error) {
	s.calls++
	if s.err != nil {
		return []model.Sighting{}, s.err
	}
	return s.sightings, nil
}

func (s *stubScanner) GetScannerType() string { return s.kind }
func (s *stubScanner) IsAvailable() bool      { return s.available }

func seen(source, addr string) model.Sighting {
	return model.Sighting{Source: source, Address: addr, Device: model.NewDeviceInfo()}
}

func TestScannerManager_ScanAll(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	bt := &stubScanner{kind: "bluetooth", available: true, sightings: []model.Sighting{seen("bluetooth", "a"), seen("bluetooth", "b")}}
	serial := &stubScanner{kind: "serial", available: true, err: errors.New("permission denied")}
	usb := &stubScanner{kind: "usb", available: false, sightings: []model.Sighting{seen("usb", "c")}}
	sm.RegisterScanner(bt)
	sm.RegisterScanner(serial)
	sm.RegisterScanner(usb)

	result := sm.ScanAll(context.Background())

	assert.Len(t, result.Sightings, 2)
	assert.Equal(t, []string{"bluetooth", "serial"}, result.Scanned)
	assert.NoError(t, result.Err())
	assert.Equal(t, "serial: permission denied", result.Diagnostic())
	assert.Zero(t, usb.calls)
}

func TestScannerManager_ScanAllEveryScannerFailed(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	sm.RegisterScanner(&stubScanner{kind: "bluetooth", available: true, err: errors.New("no adapter")})

	result := sm.ScanAll(context.Background())
	assert.Empty(t, result.Sightings)
	assert.NotNil(t, result.Sightings)
	assert.EqualError(t, result.Err(), "bluetooth: no adapter")
}

func TestScannerManager_ScanAllNothingAvailable(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	sm.RegisterScanner(&stubScanner{kind: "usb"})

	result := sm.ScanAll(context.Background())
	assert.ErrorIs(t, result.Err(), ErrNoScannersAvailable)
}

func TestScannerManager_ScanByType(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	stub := &stubScanner{kind: "bluetooth", available: false, err: errors.New("unsupported platform")}
	sm.RegisterScanner(stub)

	sightings, err := sm.ScanByType(context.Background(), "bluetooth")
	assert.EqualError(t, err, "unsupported platform")
	assert.NotNil(t, sightings)
	assert.Equal(t, 1, stub.calls)

	_, err = sm.ScanByType(context.Background(), "wifi")
	assert.ErrorIs(t, err, ErrScannerNotFound)
}

func TestScannerManager_Registry(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	sm.RegisterScanner(&stubScanner{kind: "bluetooth", available: true})
	sm.RegisterScanner(&stubScanner{kind: "serial", available: false})
	sm.RegisterScanner(&stubScanner{kind: "bluetooth", available: false})

	assert.Equal(t, []ScannerInfo{
		{Type: "bluetooth", Available: false},
		{Type: "serial", Available: false},
	}, sm.Scanners())
	assert.Empty(t, sm.GetAvailableScanners())

	_, ok := sm.Get("serial")
	require.True(t, ok)
}

// internal/bluetooth/backend.go
package bluetooth

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Backend names
const (
	BackendAuto        = "auto"
	BackendWindows     = "windows"
	BackendHCI         = "hci"
	BackendDarwin      = "darwin"
	BackendUnsupported = "unsupported"
	BackendBLE         = "ble"
)

// Record is one raw device report from a backend
type Record struct {
	Address string
	Name    string
	Class   uint32
	RSSI    int
}

// Backend performs one bounded inquiry against the native Bluetooth stack.
// Implementations acquire and release every native resource inside Inquire.
type Backend interface {
	Name() string
	Inquire(ctx context.Context) ([]Record, error)
}

// Availability is implemented by backends that know up front that they can
// never produce devices on this host.
type Availability interface {
	Available() bool
}

// Connector initiates a connection to a device identified by UUID or address
type Connector interface {
	Connect(ctx context.Context, identifier string) error
	Disconnect() error
}

// InquiryConfig holds the inquiry parameters. The defaults reproduce the
// fixed constants of the native tools.
type InquiryConfig struct {
	// Length is the HCI inquiry length in 1.28s units
	Length uint8
	// MaxResponses caps the number of HCI inquiry responses
	MaxResponses uint8
	// FlushCache asks the controller to drop cached inquiry results
	FlushCache bool
	// TimeoutMultiplier is the Windows inquiry timeout in 1.28s units
	TimeoutMultiplier uint8
	// LEScanDuration bounds a low-energy scan pass
	LEScanDuration time.Duration
	// ConnectTimeout bounds the search for a device before connecting
	ConnectTimeout time.Duration
}

// InquiryUnit is the duration of one inquiry length unit
const InquiryUnit = 1280 * time.Millisecond

// DefaultInquiryConfig returns the native defaults
func DefaultInquiryConfig() InquiryConfig {
	return InquiryConfig{
		Length:            8,
		MaxResponses:      255,
		FlushCache:        true,
		TimeoutMultiplier: 15,
		LEScanDuration:    5 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}
}

// WithDefaults fills every zero field except FlushCache from the native
// defaults. A zero MaxResponses would let the kernel report up to 255
// responses into a buffer sized for none.
func (c InquiryConfig) WithDefaults() InquiryConfig {
	defaults := DefaultInquiryConfig()
	if c.Length == 0 {
		c.Length = defaults.Length
	}
	if c.MaxResponses == 0 {
		c.MaxResponses = defaults.MaxResponses
	}
	if c.TimeoutMultiplier == 0 {
		c.TimeoutMultiplier = defaults.TimeoutMultiplier
	}
	if c.LEScanDuration <= 0 {
		c.LEScanDuration = defaults.LEScanDuration
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	return c
}

// InquiryDuration returns how long an inquiry of the given units lasts
func InquiryDuration(units uint8) time.Duration {
	return time.Duration(units) * InquiryUnit
}

// Factory creates a backend from the inquiry configuration
type Factory func(cfg InquiryConfig) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		BackendDarwin: func(InquiryConfig) (Backend, error) {
			return darwinBackend{}, nil
		},
		BackendUnsupported: func(InquiryConfig) (Backend, error) {
			return unsupportedBackend{}, nil
		},
	}
)

// Register makes a backend available by name. Platform backends register
// themselves from files built only for their OS.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("bluetooth: Register factory is nil")
	}
	factories[name] = factory
}

// Backends returns the registered backend names, sorted
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlatformBackend returns the classic backend used for an OS
func PlatformBackend(goos string) string {
	switch goos {
	case "windows":
		return BackendWindows
	case "linux":
		return BackendHCI
	case "darwin":
		return BackendDarwin
	default:
		return BackendUnsupported
	}
}

// NewBackend creates the named backend; "auto" or "" selects the classic
// backend for the running OS.
func NewBackend(name string, cfg InquiryConfig) (Backend, error) {
	if name == "" || name == BackendAuto {
		name = PlatformBackend(runtime.GOOS)
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: backend %q is not available in this build", ErrUnsupportedPlatform, name)
	}
	return factory(cfg)
}

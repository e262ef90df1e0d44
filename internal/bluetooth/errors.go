// internal/bluetooth/errors.go
package bluetooth

import "errors"

// Diagnostic signals returned alongside an empty result. None of them is
// fatal to the caller.
var (
	ErrAdapterUnavailable   = errors.New("bluetooth not available or no adapter found")
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrUnsupportedOperation = errors.New("bluetooth classic scanning is not supported via public APIs on this platform; use a low-energy scanner")
	ErrInquiryFailed        = errors.New("bluetooth inquiry failed")
)

// Connection errors
var (
	ErrInvalidIdentifier = errors.New("invalid device identifier")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrNotConnected      = errors.New("no connected device")
)

// IsUnavailable reports whether err means that scanning cannot happen on this
// host at all, as opposed to a failed attempt.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrAdapterUnavailable) ||
		errors.Is(err, ErrUnsupportedPlatform) ||
		errors.Is(err, ErrUnsupportedOperation)
}

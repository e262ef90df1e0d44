// internal/bluetooth/stub.go
package bluetooth

import "context"

// darwinBackend stands in for Classic inquiry on macOS, which has no public
// API for it. The BLE backend covers that platform.
type darwinBackend struct{}

func (darwinBackend) Name() string    { return BackendDarwin }
func (darwinBackend) Available() bool { return false }

func (darwinBackend) Inquire(context.Context) ([]Record, error) {
	return nil, ErrUnsupportedOperation
}

// unsupportedBackend is selected on every OS without a discovery mechanism
type unsupportedBackend struct{}

func (unsupportedBackend) Name() string    { return BackendUnsupported }
func (unsupportedBackend) Available() bool { return false }

func (unsupportedBackend) Inquire(context.Context) ([]Record, error) {
	return nil, ErrUnsupportedPlatform
}

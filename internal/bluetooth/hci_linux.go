//go:build linux

// internal/bluetooth/hci_linux.go

package bluetooth

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	hciChannelRaw = 0
	hciGetDevList = 0x800448d2 // _IOR('H', 210, int)
	hciInquiry    = 0x800448f0 // _IOR('H', 240, int)
)

func init() {
	Register(BackendHCI, func(cfg InquiryConfig) (Backend, error) {
		return &hciBackend{cfg: cfg.WithDefaults()}, nil
	})
}

// hciBackend runs a BlueZ inquiry through a raw HCI socket
type hciBackend struct {
	cfg InquiryConfig
}

func (b *hciBackend) Name() string { return BackendHCI }

func (b *hciBackend) Inquire(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devID, err := b.route()
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("%w: open hci%d: %v", ErrAdapterUnavailable, devID, err)
	}
	defer unix.Close(fd)

	if err := unix.Bind(fd, &unix.SockaddrHCI{Dev: devID, Channel: hciChannelRaw}); err != nil {
		return nil, fmt.Errorf("%w: bind hci%d: %v", ErrAdapterUnavailable, devID, err)
	}

	buf := newInquiryRequest(devID, b.cfg)
	if err := ioctl(fd, hciInquiry, buf); err != nil {
		return nil, fmt.Errorf("%w: hci%d: %v", ErrInquiryFailed, devID, err)
	}

	return parseInquiryResponse(buf)
}

// route finds the first adapter that is up, like hci_get_route(NULL)
func (b *hciBackend) route() (uint16, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}
	defer unix.Close(fd)

	buf := newDevListRequest()
	if err := ioctl(fd, hciGetDevList, buf); err != nil {
		return 0, fmt.Errorf("%w: list adapters: %v", ErrAdapterUnavailable, err)
	}

	devID, ok := firstUpDevice(buf)
	if !ok {
		return 0, ErrAdapterUnavailable
	}
	return devID, nil
}

func ioctl(fd int, req uintptr, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

//go:build windows

// internal/bluetooth/windows.go
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modbthprops = windows.NewLazySystemDLL("bthprops.cpl")

	procBluetoothFindFirstRadio  = modbthprops.NewProc("BluetoothFindFirstRadio")
	procBluetoothFindRadioClose  = modbthprops.NewProc("BluetoothFindRadioClose")
	procBluetoothFindFirstDevice = modbthprops.NewProc("BluetoothFindFirstDevice")
	procBluetoothFindNextDevice  = modbthprops.NewProc("BluetoothFindNextDevice")
	procBluetoothFindDeviceClose = modbthprops.NewProc("BluetoothFindDeviceClose")
)

func init() {
	Register(BackendWindows, func(cfg InquiryConfig) (Backend, error) {
		return &windowsBackend{cfg: cfg.WithDefaults()}, nil
	})
}

// BLUETOOTH_FIND_RADIO_PARAMS
type findRadioParams struct {
	size uint32
}

// BLUETOOTH_DEVICE_SEARCH_PARAMS
type deviceSearchParams struct {
	size                uint32
	returnAuthenticated int32
	returnRemembered    int32
	returnUnknown       int32
	returnConnected     int32
	issueInquiry        int32
	timeoutMultiplier   uint8
	radio               windows.Handle
}

// BLUETOOTH_DEVICE_INFO
type deviceInfo struct {
	size          uint32
	_             uint32
	address       uint64
	classOfDevice uint32
	connected     int32
	remembered    int32
	authenticated int32
	lastSeen      windows.Systemtime
	lastUsed      windows.Systemtime
	name          [248]uint16
}

// windowsBackend enumerates devices through the Win32 Bluetooth APIs
type windowsBackend struct {
	cfg InquiryConfig
}

func (b *windowsBackend) Name() string { return BackendWindows }

func (b *windowsBackend) Available() bool {
	return modbthprops.Load() == nil
}

func (b *windowsBackend) Inquire(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := modbthprops.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}

	radioParams := findRadioParams{size: uint32(unsafe.Sizeof(findRadioParams{}))}
	var radio windows.Handle
	radioFind, _, callErr := procBluetoothFindFirstRadio.Call(
		uintptr(unsafe.Pointer(&radioParams)),
		uintptr(unsafe.Pointer(&radio)),
	)
	if radioFind == 0 {
		return nil, fmt.Errorf("%w: %v", ErrAdapterUnavailable, callErr)
	}
	defer procBluetoothFindRadioClose.Call(radioFind)
	defer windows.CloseHandle(radio)

	search := deviceSearchParams{
		returnAuthenticated: 1,
		returnRemembered:    1,
		returnUnknown:       1,
		returnConnected:     1,
		issueInquiry:        1,
		timeoutMultiplier:   b.cfg.TimeoutMultiplier,
		radio:               radio,
	}
	search.size = uint32(unsafe.Sizeof(search))

	info := deviceInfo{size: uint32(unsafe.Sizeof(deviceInfo{}))}
	deviceFind, _, callErr := procBluetoothFindFirstDevice.Call(
		uintptr(unsafe.Pointer(&search)),
		uintptr(unsafe.Pointer(&info)),
	)
	if deviceFind == 0 {
		if errors.Is(callErr, windows.ERROR_NO_MORE_ITEMS) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("%w: BluetoothFindFirstDevice: %v", ErrInquiryFailed, callErr)
	}
	defer procBluetoothFindDeviceClose.Call(deviceFind)

	var records []Record
	for {
		records = append(records, Record{
			Address: AddressFromUint64(info.address).String(),
			Name:    windows.UTF16ToString(info.name[:]),
			Class:   info.classOfDevice,
		})

		info = deviceInfo{size: uint32(unsafe.Sizeof(deviceInfo{}))}
		ok, _, _ := procBluetoothFindNextDevice.Call(deviceFind, uintptr(unsafe.Pointer(&info)))
		if ok == 0 {
			break
		}
	}
	return records, nil
}

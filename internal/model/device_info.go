// internal/model/device_info.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

// InterfaceType classifies how a device is attached to the host
type InterfaceType int

const (
	InterfaceUSB     InterfaceType = 0
	InterfaceUSBHID  InterfaceType = 1
	InterfaceBT      InterfaceType = 2
	InterfaceUnknown InterfaceType = 3
)

var interfaceNames = map[InterfaceType]string{
	InterfaceUSB:     "USB",
	InterfaceUSBHID:  "USB_HID",
	InterfaceBT:      "BT",
	InterfaceUnknown: "UNKNOWN",
}

// String returns the variant name
func (t InterfaceType) String() string {
	if name, ok := interfaceNames[t]; ok {
		return name
	}
	return fmt.Sprintf("InterfaceType(%d)", int(t))
}

// Valid reports whether t is one of the declared variants
func (t InterfaceType) Valid() bool {
	_, ok := interfaceNames[t]
	return ok
}

// MachineType classifies the hardware generation of a device. The set is
// open: new codes are added with RegisterMachineType.
type MachineType int

const (
	MachineUnknown MachineType = 0
	MachineTypeA   MachineType = 1
	MachineTypeB   MachineType = 2
)

var (
	machineMu    sync.RWMutex
	machineNames = map[MachineType]string{
		MachineUnknown: "UNKNOWN",
		MachineTypeA:   "TYPE_A",
		MachineTypeB:   "TYPE_B",
	}
)

// RegisterMachineType adds a machine type code. Registering an existing
// code with a different name is an error.
func RegisterMachineType(code MachineType, name string) error {
	if code < 0 {
		return fmt.Errorf("machine type code must be non-negative: %d", code)
	}
	if name == "" {
		return fmt.Errorf("machine type name is required")
	}

	machineMu.Lock()
	defer machineMu.Unlock()

	if existing, ok := machineNames[code]; ok && existing != name {
		return fmt.Errorf("machine type %d already registered as %s", code, existing)
	}
	machineNames[code] = name
	return nil
}

// MachineTypeByName looks up a registered machine type by name
func MachineTypeByName(name string) (MachineType, bool) {
	machineMu.RLock()
	defer machineMu.RUnlock()

	for code, n := range machineNames {
		if n == name {
			return code, true
		}
	}
	return MachineUnknown, false
}

// String returns the registered name
func (m MachineType) String() string {
	machineMu.RLock()
	defer machineMu.RUnlock()

	if name, ok := machineNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MachineType(%d)", int(m))
}

// Valid reports whether m is a registered code
func (m MachineType) Valid() bool {
	machineMu.RLock()
	defer machineMu.RUnlock()

	_, ok := machineNames[m]
	return ok
}

// JSON keys of the DeviceInfo wire format
const (
	KeyComPortName    = "comPortName"
	KeyBTFriendlyName = "BTFriendlyName"
	KeyInterfaceType  = "interfaceType"
	KeyInterfaceIndex = "interfaceIndex"
	KeyMachineType    = "machineType"
)

// DeviceInfo is one discovered or configured device
type DeviceInfo struct {
	ComPortName    string        `json:"comPortName" yaml:"comPortName"`
	BTFriendlyName string        `json:"BTFriendlyName" yaml:"BTFriendlyName"`
	InterfaceType  InterfaceType `json:"interfaceType" yaml:"interfaceType"`
	InterfaceIndex int32         `json:"interfaceIndex" yaml:"interfaceIndex"`
	MachineType    MachineType   `json:"machineType" yaml:"machineType"`
}

// NewDeviceInfo returns a DeviceInfo with every field at its default
func NewDeviceInfo() DeviceInfo {
	return DeviceInfo{
		InterfaceType: InterfaceUnknown,
		MachineType:   MachineUnknown,
	}
}

// DisplayName returns the friendly name, falling back to the COM port
func (d DeviceInfo) DisplayName() string {
	if d.BTFriendlyName != "" {
		return d.BTFriendlyName
	}
	return d.ComPortName
}

// ToJSON encodes d as a JSON object with exactly the five wire keys
func ToJSON(d DeviceInfo) ([]byte, error) {
	return json.Marshal(d)
}

// FromJSON decodes a DeviceInfo. It never fails: absent, wrong-typed or
// out-of-range values resolve to the field default.
func FromJSON(data []byte) DeviceInfo {
	d, _ := Inspect(data)
	return d
}

// Inspect decodes like FromJSON and also reports the keys that were present
// but could not be used and therefore fell back to their defaults. A non-object
// document reports the empty key.
func Inspect(data []byte) (DeviceInfo, []string) {
	device := NewDeviceInfo()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return device, []string{""}
	}
	return decodeFields(fields)
}

func decodeFields(fields map[string]json.RawMessage) (DeviceInfo, []string) {
	device := NewDeviceInfo()
	var fallbacks []string

	if raw, ok := fields[KeyComPortName]; ok {
		if s, ok := decodeString(raw); ok {
			device.ComPortName = s
		} else {
			fallbacks = append(fallbacks, KeyComPortName)
		}
	}

	if raw, ok := fields[KeyBTFriendlyName]; ok {
		if s, ok := decodeString(raw); ok {
			device.BTFriendlyName = s
		} else {
			fallbacks = append(fallbacks, KeyBTFriendlyName)
		}
	}

	if raw, ok := fields[KeyInterfaceType]; ok {
		n, ok := decodeInt(raw)
		if ok && InterfaceType(n).Valid() {
			device.InterfaceType = InterfaceType(n)
		} else {
			fallbacks = append(fallbacks, KeyInterfaceType)
		}
	}

	if raw, ok := fields[KeyInterfaceIndex]; ok {
		if n, ok := decodeInt(raw); ok {
			device.InterfaceIndex = int32(n)
		} else {
			fallbacks = append(fallbacks, KeyInterfaceIndex)
		}
	}

	if raw, ok := fields[KeyMachineType]; ok {
		n, ok := decodeInt(raw)
		if ok && MachineType(n).Valid() {
			device.MachineType = MachineType(n)
		} else {
			fallbacks = append(fallbacks, KeyMachineType)
		}
	}

	return device, fallbacks
}

// UnmarshalJSON applies the lenient decode rules, so it only returns an
// error for syntactically broken input that encoding/json rejects before
// calling it.
func (d *DeviceInfo) UnmarshalJSON(data []byte) error {
	*d = FromJSON(data)
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeInt accepts JSON numbers with an integral value that fit in an int32
func decodeInt(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// EncodeList encodes devices as a JSON array; nil encodes as []
func EncodeList(devices []DeviceInfo) ([]byte, error) {
	if devices == nil {
		devices = []DeviceInfo{}
	}
	return json.Marshal(devices)
}

// DecodeList decodes a JSON array of devices. Elements are decoded leniently;
// only a document that is not an array is reported as an error.
func DecodeList(data []byte) ([]DeviceInfo, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("device list is not a JSON array: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(raws))
	for _, raw := range raws {
		devices = append(devices, FromJSON(raw))
	}
	return devices, nil
}

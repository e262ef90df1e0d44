package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceInfo_RoundTrip(t *testing.T) {
	devices := []DeviceInfo{
		NewDeviceInfo(),
		{ComPortName: "COM7", BTFriendlyName: "HC-05", InterfaceType: InterfaceBT, InterfaceIndex: 2, MachineType: MachineTypeA},
		{ComPortName: "/dev/ttyUSB0", InterfaceType: InterfaceUSB, InterfaceIndex: 0, MachineType: MachineTypeB},
		{BTFriendlyName: "Keyboard ü", InterfaceType: InterfaceUSBHID, InterfaceIndex: -1},
		{InterfaceType: InterfaceUnknown, InterfaceIndex: 1 << 20},
	}

	for _, d := range devices {
		data, err := ToJSON(d)
		require.NoError(t, err)
		assert.Equal(t, d, FromJSON(data))
	}
}

func TestDeviceInfo_IndexBounds(t *testing.T) {
	for _, index := range []int32{math.MaxInt32, math.MinInt32, math.MaxInt32 - 1, math.MinInt32 + 1} {
		data, err := ToJSON(DeviceInfo{InterfaceType: InterfaceBT, InterfaceIndex: index})
		require.NoError(t, err)
		assert.Equal(t, index, FromJSON(data).InterfaceIndex)
	}

	for _, input := range []string{
		`{"interfaceIndex":2147483648}`,
		`{"interfaceIndex":-2147483649}`,
		`{"interfaceIndex":1099511627776}`,
	} {
		d, fallbacks := Inspect([]byte(input))
		assert.Equal(t, NewDeviceInfo(), d, input)
		assert.Equal(t, []string{KeyInterfaceIndex}, fallbacks, input)
	}
}

func TestDeviceInfo_KeyShape(t *testing.T) {
	for _, d := range []DeviceInfo{{}, NewDeviceInfo(), {ComPortName: "x", BTFriendlyName: "y", InterfaceType: InterfaceBT, InterfaceIndex: 9, MachineType: MachineTypeB}} {
		data, err := ToJSON(d)
		require.NoError(t, err)

		var fields map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &fields))

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		assert.ElementsMatch(t, []string{"comPortName", "BTFriendlyName", "interfaceType", "interfaceIndex", "machineType"}, keys)
	}
}

func TestDeviceInfo_EnumsEncodeAsIntegers(t *testing.T) {
	data, err := ToJSON(DeviceInfo{InterfaceType: InterfaceBT, MachineType: MachineTypeB})
	require.NoError(t, err)
	assert.JSONEq(t, `{"comPortName":"","BTFriendlyName":"","interfaceType":2,"interfaceIndex":0,"machineType":2}`, string(data))
}

func TestFromJSON_Defaults(t *testing.T) {
	want := DeviceInfo{
		ComPortName:    "",
		BTFriendlyName: "",
		InterfaceType:  InterfaceUnknown,
		InterfaceIndex: 0,
		MachineType:    MachineUnknown,
	}
	assert.Equal(t, want, FromJSON([]byte(`{}`)))
}

func TestFromJSON_Total(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  DeviceInfo
	}{
		{
			name:  "extra unknown keys",
			input: `{"BTFriendlyName":"Speaker","rssi":-40,"nested":{"a":1}}`,
			want:  DeviceInfo{BTFriendlyName: "Speaker", InterfaceType: InterfaceUnknown},
		},
		{
			name:  "wrong typed string fields",
			input: `{"comPortName":7,"BTFriendlyName":["a"],"interfaceType":2}`,
			want:  DeviceInfo{InterfaceType: InterfaceBT},
		},
		{
			name:  "wrong typed numeric fields",
			input: `{"interfaceType":"2","interfaceIndex":true,"machineType":null,"comPortName":"COM3"}`,
			want:  DeviceInfo{ComPortName: "COM3", InterfaceType: InterfaceUnknown},
		},
		{
			name:  "fractional numbers",
			input: `{"interfaceIndex":1.5,"interfaceType":0.5}`,
			want:  NewDeviceInfo(),
		},
		{
			name:  "integral floats",
			input: `{"interfaceIndex":4.0,"interfaceType":1e0}`,
			want:  DeviceInfo{InterfaceIndex: 4, InterfaceType: InterfaceUSBHID},
		},
		{
			name:  "out of range enums clamp to unknown",
			input: `{"interfaceType":42,"machineType":-3,"interfaceIndex":3}`,
			want:  DeviceInfo{InterfaceType: InterfaceUnknown, MachineType: MachineUnknown, InterfaceIndex: 3},
		},
		{
			name:  "index overflow",
			input: `{"interfaceIndex":99999999999}`,
			want:  NewDeviceInfo(),
		},
		{name: "array", input: `[1,2]`, want: NewDeviceInfo()},
		{name: "null", input: `null`, want: NewDeviceInfo()},
		{name: "garbage", input: `{not json`, want: NewDeviceInfo()},
		{name: "empty", input: ``, want: NewDeviceInfo()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, FromJSON([]byte(tt.input)))
			})
		})
	}
}

func TestInspect_ReportsFallbacks(t *testing.T) {
	d, fallbacks := Inspect([]byte(`{"comPortName":1,"interfaceType":17,"interfaceIndex":2}`))
	assert.Equal(t, DeviceInfo{InterfaceType: InterfaceUnknown, InterfaceIndex: 2}, d)
	assert.Equal(t, []string{KeyComPortName, KeyInterfaceType}, fallbacks)

	_, fallbacks = Inspect([]byte(`{}`))
	assert.Empty(t, fallbacks)

	_, fallbacks = Inspect([]byte(`"str"`))
	assert.Equal(t, []string{""}, fallbacks)
}

func TestDeviceInfo_UnmarshalJSONIsLenient(t *testing.T) {
	var d DeviceInfo
	require.NoError(t, json.Unmarshal([]byte(`{"interfaceType":"BT","BTFriendlyName":"Pad"}`), &d))
	assert.Equal(t, DeviceInfo{BTFriendlyName: "Pad", InterfaceType: InterfaceUnknown}, d)
}

func TestEncodeList(t *testing.T) {
	data, err := EncodeList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = EncodeList([]DeviceInfo{{BTFriendlyName: "a", InterfaceType: InterfaceBT}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"comPortName":"","BTFriendlyName":"a","interfaceType":2,"interfaceIndex":0,"machineType":0}]`, string(data))
}

func TestDecodeList(t *testing.T) {
	devices, err := DecodeList([]byte(`[{}, {"BTFriendlyName":"b","interfaceType":2}, 5]`))
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, NewDeviceInfo(), devices[0])
	assert.Equal(t, "b", devices[1].BTFriendlyName)
	assert.Equal(t, NewDeviceInfo(), devices[2])

	_, err = DecodeList([]byte(`{}`))
	assert.Error(t, err)
}

func TestRegisterMachineType(t *testing.T) {
	const typeC MachineType = 3

	require.NoError(t, RegisterMachineType(typeC, "TYPE_C"))
	require.NoError(t, RegisterMachineType(typeC, "TYPE_C"))
	assert.Error(t, RegisterMachineType(typeC, "OTHER"))
	assert.Error(t, RegisterMachineType(-1, "NEG"))
	assert.Error(t, RegisterMachineType(4, ""))

	assert.Equal(t, typeC, FromJSON([]byte(`{"machineType":3}`)).MachineType)
	assert.Equal(t, "TYPE_C", typeC.String())

	code, ok := MachineTypeByName("TYPE_B")
	assert.True(t, ok)
	assert.Equal(t, MachineTypeB, code)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "BT", InterfaceBT.String())
	assert.Equal(t, "USB_HID", InterfaceUSBHID.String())
	assert.Equal(t, "InterfaceType(9)", InterfaceType(9).String())
	assert.Equal(t, "MachineType(77)", MachineType(77).String())
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeDevicesFound, OutcomeOf(2, nil))
	assert.Equal(t, OutcomeNoDevices, OutcomeOf(0, nil))
	assert.Equal(t, OutcomeFailed, OutcomeOf(0, assert.AnError))
}

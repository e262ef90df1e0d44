package bluetooth

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bt-discovery/internal/model"
)

type staticClassifier model.MachineType

func (c staticClassifier) Classify(model.Sighting) model.MachineType {
	return model.MachineType(c)
}

func TestScanner_NoAdapterIsNonFatal(t *testing.T) {
	backend := NewFakeBackend("fake").AddFailure(ErrAdapterUnavailable)
	scanner := NewScanner(backend, WithLogger(zaptest.NewLogger(t)))

	var devices []model.DeviceInfo
	var err error
	require.NotPanics(t, func() {
		devices, err = scanner.Scan(context.Background())
	})

	assert.NotNil(t, devices)
	assert.Empty(t, devices)
	assert.ErrorIs(t, err, ErrAdapterUnavailable)
	assert.Equal(t, model.OutcomeFailed, model.OutcomeOf(len(devices), err))
}

func TestScanner_InquiryFailureNeverPartiallyPopulates(t *testing.T) {
	backend := NewFakeBackend("fake").AddFailure(errors.Join(ErrInquiryFailed, errors.New("ioctl: EIO")))
	scanner := NewScanner(backend)

	sightings, err := scanner.Discover(context.Background())
	assert.ErrorIs(t, err, ErrInquiryFailed)
	assert.Empty(t, sightings)
}

func TestScanner_UnsupportedIsDeterministic(t *testing.T) {
	backend, err := NewBackend(BackendUnsupported, DefaultInquiryConfig())
	require.NoError(t, err)

	scanner := NewScanner(backend)
	assert.False(t, scanner.IsAvailable())

	for i := 0; i < 3; i++ {
		devices, err := scanner.Scan(context.Background())
		assert.Empty(t, devices)
		assert.NotNil(t, devices)
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	}
}

func TestScanner_DarwinStubSignalsUnsupportedOperation(t *testing.T) {
	backend, err := NewBackend(BackendDarwin, DefaultInquiryConfig())
	require.NoError(t, err)

	devices, err := NewScanner(backend).Scan(context.Background())
	assert.Empty(t, devices)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.True(t, IsUnavailable(err))
}

func TestScanner_RepeatedPassesAreNotDeduplicated(t *testing.T) {
	dev := Record{Address: "00:1A:7D:DA:71:13", Name: "Headset"}
	backend := NewFakeBackend("fake").AddPass(dev).AddPass(dev)
	scanner := NewScanner(backend)

	var all []model.DeviceInfo
	for i := 0; i < 2; i++ {
		devices, err := scanner.Scan(context.Background())
		require.NoError(t, err)
		all = append(all, devices...)
	}

	require.Len(t, all, 2)
	assert.Equal(t, all[0], all[1])
	assert.Equal(t, 2, backend.Calls())
}

func TestScanner_DuplicateWithinPassIsKept(t *testing.T) {
	dev := Record{Address: "00:1A:7D:DA:71:13"}
	scanner := NewScanner(NewFakeBackend("fake").AddPass(dev, dev))

	devices, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, int32(0), devices[0].InterfaceIndex)
	assert.Equal(t, int32(1), devices[1].InterfaceIndex)
}

func TestScanner_RecordMapping(t *testing.T) {
	backend := NewFakeBackend("fake").AddPass(
		Record{Address: "AA:BB:CC:DD:EE:01", Name: "Printer"},
		Record{Address: "AA:BB:CC:DD:EE:02"},
	)
	scanner := NewScanner(backend, WithClassifier(staticClassifier(model.MachineTypeB)))

	sightings, err := scanner.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, sightings, 2)

	assert.Equal(t, model.Sighting{
		Source:  model.SourceBluetooth,
		Address: "AA:BB:CC:DD:EE:01",
		Device: model.DeviceInfo{
			BTFriendlyName: "Printer",
			InterfaceType:  model.InterfaceBT,
			InterfaceIndex: 0,
			MachineType:    model.MachineTypeB,
		},
	}, sightings[0])

	assert.Equal(t, "AA:BB:CC:DD:EE:02", sightings[1].Device.BTFriendlyName)
	assert.Equal(t, int32(1), sightings[1].Device.InterfaceIndex)
	assert.Empty(t, sightings[1].Device.ComPortName)
}

func TestScanner_SourceFollowsBackend(t *testing.T) {
	assert.Equal(t, model.SourceBLE, NewScanner(NewFakeBackend(BackendBLE)).GetScannerType())
	assert.Equal(t, model.SourceBluetooth, NewScanner(NewFakeBackend("fake")).GetScannerType())
	assert.Equal(t, "custom", NewScanner(NewFakeBackend("fake"), WithSource("custom")).GetScannerType())
}

func TestScanner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	devices, err := NewScanner(NewFakeBackend("fake").AddPass(Record{Address: "x"})).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, devices)
}

func TestScanAndPrint(t *testing.T) {
	backend := NewFakeBackend("fake").
		AddPass(Record{Address: "AA:BB:CC:DD:EE:01", Name: "Printer"}, Record{Address: "AA:BB:CC:DD:EE:02"}).
		AddPass().
		AddFailure(ErrAdapterUnavailable)
	scanner := NewScanner(backend)

	var out, errOut bytes.Buffer
	scanner.ScanAndPrint(context.Background(), &out, &errOut)
	assert.Equal(t,
		"Bluetooth device found: Printer - AA:BB:CC:DD:EE:01\nBluetooth device found: AA:BB:CC:DD:EE:02\n",
		out.String())
	assert.Empty(t, errOut.String())

	out.Reset()
	scanner.ScanAndPrint(context.Background(), &out, &errOut)
	assert.Equal(t, "No Bluetooth devices found.\n", out.String())

	out.Reset()
	scanner.ScanAndPrint(context.Background(), &out, &errOut)
	assert.Empty(t, out.String())
	assert.Equal(t, "bluetooth not available or no adapter found\n", errOut.String())
}

func TestDiagnostic(t *testing.T) {
	assert.Empty(t, Diagnostic(nil))
	assert.Equal(t, "unsupported platform", Diagnostic(ErrUnsupportedPlatform))
	assert.Equal(t, "Bluetooth scan failed: bluetooth inquiry failed", Diagnostic(ErrInquiryFailed))
}

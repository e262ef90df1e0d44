package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/config"
	"bt-discovery/internal/console"
	"bt-discovery/internal/discovery"
	"bt-discovery/internal/discovery/serial"
	"bt-discovery/internal/pairing"
	"bt-discovery/internal/service"
)

func testSession(t *testing.T, backend bluetooth.Backend, withSerial bool) *session {
	t.Helper()
	logger := zaptest.NewLogger(t)

	manager := discovery.NewScannerManager(logger)
	manager.RegisterScanner(bluetooth.NewScanner(backend, bluetooth.WithLogger(logger)))
	if withSerial {
		manager.RegisterScanner(serial.NewScanner(logger, serial.WithLister(func() ([]*enumerator.PortDetails, error) {
			return []*enumerator.PortDetails{{Name: "/dev/ttyUSB0", IsUSB: true}}, nil
		})))
	}

	scanners := &service.Scanners{
		Manager:   manager,
		Connector: bluetooth.NewFakeConnector("00:11:22:33:44:55"),
		Backend:   backend.Name(),
	}
	return newSessionWith(config.Default(), scanners, logger)
}

func textPrinter() (*console.Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return console.NewPrinter(&out, &errOut, console.FormatText), &out, &errOut
}

func TestRunScan(t *testing.T) {
	backend := bluetooth.NewFakeBackend("fake").AddPass(
		bluetooth.Record{Address: "00:11:22:33:44:55", Name: "Receipt Printer"},
		bluetooth.Record{Address: "AA:BB:CC:DD:EE:FF", Name: "Headphones"},
	)
	s := testSession(t, backend, false)

	printer, out, _ := textPrinter()
	require.NoError(t, runScan(context.Background(), s, scanOptions{}, printer))
	assert.Equal(t,
		"Bluetooth device found: Receipt Printer - 00:11:22:33:44:55\n"+
			"Bluetooth device found: Headphones - AA:BB:CC:DD:EE:FF\n",
		out.String())

	printer, out, _ = textPrinter()
	require.NoError(t, runScan(context.Background(), s, scanOptions{keywords: []string{"printer"}}, printer))
	assert.Equal(t, "Bluetooth device found: Receipt Printer - 00:11:22:33:44:55\n", out.String())
}

func TestRunScan_Failure(t *testing.T) {
	backend := bluetooth.NewFakeBackend("fake").AddFailure(bluetooth.ErrAdapterUnavailable)
	s := testSession(t, backend, false)

	printer, out, errOut := textPrinter()
	err := runScan(context.Background(), s, scanOptions{}, printer)
	assert.ErrorIs(t, err, errScanFailed)
	assert.Empty(t, out.String())
	assert.Equal(t, "bluetooth not available or no adapter found\n", errOut.String())
}

func TestRunScan_JSON(t *testing.T) {
	s := testSession(t, bluetooth.NewFakeBackend("fake"), false)

	var out bytes.Buffer
	printer := console.NewPrinter(&out, &out, console.FormatJSON)
	require.NoError(t, runScan(context.Background(), s, scanOptions{}, printer))

	var report service.ScanReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "NO_DEVICES", string(report.Outcome))
	assert.NotNil(t, report.Devices)
}

func TestRunScan_UnknownType(t *testing.T) {
	s := testSession(t, bluetooth.NewFakeBackend("fake"), false)
	printer, _, _ := textPrinter()

	err := runScan(context.Background(), s, scanOptions{scanType: "wifi"}, printer)
	assert.ErrorIs(t, err, service.ErrUnknownScanType)
}

func TestRunPorts(t *testing.T) {
	s := testSession(t, bluetooth.NewFakeBackend("fake"), true)
	printer, out, _ := textPrinter()

	require.NoError(t, runPorts(context.Background(), s, printer))
	assert.Contains(t, out.String(), "/dev/ttyUSB0")

	s = testSession(t, bluetooth.NewFakeBackend("fake"), false)
	assert.Error(t, runPorts(context.Background(), s, printer))
}

func TestRunConnect(t *testing.T) {
	s := testSession(t, bluetooth.NewFakeBackend("fake"), false)
	printer, out, _ := textPrinter()

	require.NoError(t, runConnect(context.Background(), s, "00-11-22-33-44-55", printer))
	assert.Contains(t, out.String(), "connected 00:11:22:33:44:55")

	err := runConnect(context.Background(), s, "not-an-address", printer)
	assert.ErrorIs(t, err, bluetooth.ErrInvalidIdentifier)
}

type unpairRunner struct {
	removed []string
}

func (r *unpairRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	switch args[0] {
	case "devices":
		return []byte("Device 00:11:22:33:44:55 Receipt Printer\nDevice AA:BB:CC:DD:EE:FF Headphones\n"), nil
	case "remove":
		r.removed = append(r.removed, args[1])
		return nil, nil
	}
	return nil, errors.New("unexpected command")
}

func TestRunUnpair(t *testing.T) {
	runner := &unpairRunner{}
	m := pairing.NewManager(runner, zaptest.NewLogger(t))
	printer, out, _ := textPrinter()

	require.NoError(t, runUnpair(context.Background(), m, []string{"printer"}, false, printer))
	assert.Equal(t, []string{"00:11:22:33:44:55"}, runner.removed)
	assert.Contains(t, out.String(), "Receipt Printer")

	assert.Error(t, runUnpair(context.Background(), m, nil, false, printer))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "btscan ")
}

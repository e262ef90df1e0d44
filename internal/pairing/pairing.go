// internal/pairing/pairing.go
package pairing

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"bt-discovery/internal/bluetooth"
)

// ErrToolUnavailable is returned when bluetoothctl cannot be run
var ErrToolUnavailable = errors.New("bluetoothctl not available")

// Runner executes an external command and returns its standard output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Device is a paired device as listed by bluetoothctl
type Device struct {
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name" yaml:"name"`
}

// Result reports what happened to one matching device
type Result struct {
	Device  Device `json:"device" yaml:"device"`
	Keyword string `json:"keyword" yaml:"keyword"`
	Removed bool   `json:"removed" yaml:"removed"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Manager lists and removes paired devices through bluetoothctl
type Manager struct {
	runner Runner
	tool   string
	logger *zap.Logger
}

// NewManager creates a manager. A nil runner uses ExecRunner.
func NewManager(runner Runner, logger *zap.Logger) *Manager {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		runner: runner,
		tool:   "bluetoothctl",
		logger: logger.With(zap.String("component", "pairing")),
	}
}

// PairedDevices lists the paired devices. Older bluetoothctl releases only
// understand "paired-devices", newer ones only "devices Paired".
func (m *Manager) PairedDevices(ctx context.Context) ([]Device, error) {
	out, err := m.runner.Run(ctx, m.tool, "devices", "Paired")
	if err != nil && !errors.Is(err, ErrToolUnavailable) {
		m.logger.Debug("Falling back to paired-devices", zap.Error(err))
		out, err = m.runner.Run(ctx, m.tool, "paired-devices")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list paired devices: %w", err)
	}
	return ParseDevices(out), nil
}

// ParseDevices parses "Device <MAC> <name>" lines
func ParseDevices(out []byte) []Device {
	devices := []Device{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 3)
		if len(fields) < 2 || fields[0] != "Device" {
			continue
		}

		addr, err := bluetooth.ParseAddress(fields[1])
		if err != nil {
			continue
		}

		device := Device{Address: addr.String()}
		if len(fields) == 3 {
			device.Name = strings.TrimSpace(fields[2])
		}
		devices = append(devices, device)
	}
	return devices
}

// Unpair removes every paired device whose name contains one of keywords.
// With dryRun the matches are reported but nothing is removed.
func (m *Manager) Unpair(ctx context.Context, keywords []string, dryRun bool) ([]Result, error) {
	devices, err := m.PairedDevices(ctx)
	if err != nil {
		return nil, err
	}

	results := []Result{}
	for _, device := range devices {
		keyword, ok := MatchKeyword(device.Name, keywords)
		if !ok {
			continue
		}

		result := Result{Device: device, Keyword: keyword}
		if dryRun {
			results = append(results, result)
			continue
		}

		if _, err := m.runner.Run(ctx, m.tool, "remove", device.Address); err != nil {
			m.logger.Warn("Failed to remove device",
				zap.String("address", device.Address),
				zap.String("name", device.Name),
				zap.Error(err),
			)
			result.Error = err.Error()
		} else {
			m.logger.Info("Removed device",
				zap.String("address", device.Address),
				zap.String("name", device.Name),
			)
			result.Removed = true
		}
		results = append(results, result)
	}
	return results, nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "auto", cfg.Bluetooth.Backend)
	assert.Equal(t, 8, cfg.Bluetooth.InquiryLength)
	assert.Equal(t, 255, cfg.Bluetooth.MaxResponses)
	assert.Equal(t, 15, cfg.Bluetooth.TimeoutMultiplier)
	assert.True(t, cfg.Bluetooth.FlushCache)
	assert.Equal(t, 5*time.Second, cfg.Bluetooth.BLEScanDuration)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "bluetooth", cfg.Discovery.DefaultType)
	assert.Equal(t, "_btdiscovery._tcp", cfg.MDNS.Service)
	assert.Equal(t, 168*time.Hour, cfg.History.Retention)
	assert.NoError(t, validate(cfg))
}

func TestDefault_InquiryMatchesNativeConstants(t *testing.T) {
	inquiry := Default().Bluetooth.Inquiry()

	assert.Equal(t, uint8(8), inquiry.Length)
	assert.Equal(t, uint8(255), inquiry.MaxResponses)
	assert.Equal(t, uint8(15), inquiry.TimeoutMultiplier)
	assert.True(t, inquiry.FlushCache)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
bluetooth:
  backend: unsupported
  inquiry_length: 4
database:
  driver: none
logging:
  level: debug
  format: console
discovery:
  default_type: all
  machine_types:
    TYPE_C: 3
  machine_rules:
    - pattern: "^HC-0[56]"
      machine_type: TYPE_A
    - source: usb
      pattern: "04b8:0202"
      machine_type: TYPE_B
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "unsupported", cfg.Bluetooth.Backend)
	assert.Equal(t, 4, cfg.Bluetooth.InquiryLength)
	assert.Equal(t, 255, cfg.Bluetooth.MaxResponses)
	assert.Equal(t, "none", cfg.Database.Driver)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, map[string]int{"type_c": 3}, lowerKeys(cfg.Discovery.MachineTypes))
	require.Len(t, cfg.Discovery.MachineRules, 2)
	assert.Equal(t, MachineRule{Source: "usb", Pattern: "04b8:0202", MachineType: "TYPE_B"}, cfg.Discovery.MachineRules[1])
}

// viper lower-cases map keys
func lowerKeys(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BT_DISCOVERY_BLUETOOTH_BACKEND", "ble")
	t.Setenv("BT_DISCOVERY_SERVER_PORT", "9999")

	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "ble", cfg.Bluetooth.Backend)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9999", cfg.GetServerAddr())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"backend", "bluetooth:\n  backend: bluez\n"},
		{"inquiry length", "bluetooth:\n  inquiry_length: 64\n"},
		{"max responses", "bluetooth:\n  max_responses: 0\n"},
		{"driver", "database:\n  driver: mysql\n"},
		{"level", "logging:\n  level: trace\n"},
		{"scan type", "discovery:\n  default_type: wifi\n"},
		{"rule", "discovery:\n  machine_rules:\n    - pattern: x\n"},
		{"environment", "app:\n  environment: qa\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "/tmp/x.db"
	assert.Equal(t, "file:/tmp/x.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.GetDatabaseDSN())

	cfg.Database.Driver = "postgres"
	assert.Contains(t, cfg.GetDatabaseDSN(), "dbname=bt_discovery")

	cfg.Database.Driver = "none"
	assert.Empty(t, cfg.GetDatabaseDSN())
}

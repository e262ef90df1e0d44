// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bt-discovery/internal/bluetooth"
)

// EnvPrefix is the prefix of every environment override, e.g.
// BT_DISCOVERY_BLUETOOTH_BACKEND=ble
const EnvPrefix = "BT_DISCOVERY"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Bluetooth BluetoothConfig `mapstructure:"bluetooth"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Security  SecurityConfig  `mapstructure:"security"`
	MDNS      MDNSConfig      `mapstructure:"mdns"`
	History   HistoryConfig   `mapstructure:"history"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig represents scan history storage configuration.
// Driver "none" keeps history in memory.
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"`
	Path         string        `mapstructure:"path"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	AutoMigrate  bool          `mapstructure:"auto_migrate"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// BluetoothConfig represents the inquiry parameters
type BluetoothConfig struct {
	Backend           string        `mapstructure:"backend"`
	InquiryLength     int           `mapstructure:"inquiry_length"`
	MaxResponses      int           `mapstructure:"max_responses"`
	FlushCache        bool          `mapstructure:"flush_cache"`
	TimeoutMultiplier int           `mapstructure:"timeout_multiplier"`
	BLEEnabled        bool          `mapstructure:"ble_enabled"`
	BLEScanDuration   time.Duration `mapstructure:"ble_scan_duration"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// DiscoveryConfig represents the discovery sources and classification rules
type DiscoveryConfig struct {
	DefaultType  string         `mapstructure:"default_type"`
	ScanTimeout  time.Duration  `mapstructure:"scan_timeout"`
	Serial       SourceConfig   `mapstructure:"serial"`
	USB          SourceConfig   `mapstructure:"usb"`
	MachineTypes map[string]int `mapstructure:"machine_types"`
	MachineRules []MachineRule  `mapstructure:"machine_rules"`
}

// SourceConfig toggles an optional discovery source
type SourceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MachineRule maps devices whose name, port or address matches Pattern to a
// machine type. Source restricts the rule to one discovery source.
type MachineRule struct {
	Source      string `mapstructure:"source"`
	Pattern     string `mapstructure:"pattern"`
	MachineType string `mapstructure:"machine_type"`
}

// SecurityConfig represents HTTP security configuration
type SecurityConfig struct {
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// MDNSConfig represents service advertisement configuration
type MDNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Instance string `mapstructure:"instance"`
	Service  string `mapstructure:"service"`
	Domain   string `mapstructure:"domain"`
}

// HistoryConfig represents scan history retention
type HistoryConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	DefaultLimit    int           `mapstructure:"default_limit"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

var (
	validEnvs        = []string{"development", "staging", "production", "test"}
	validLevels      = []string{"debug", "info", "warn", "error", "fatal"}
	validFormats     = []string{"json", "console"}
	validDrivers     = []string{"none", "sqlite", "postgres"}
	validScanTypes   = []string{"bluetooth", "ble", "serial", "usb", "all"}
	validBackendList = []string{
		bluetooth.BackendAuto, bluetooth.BackendWindows, bluetooth.BackendHCI,
		bluetooth.BackendDarwin, bluetooth.BackendUnsupported, bluetooth.BackendBLE,
	}
)

// Load loads configuration from file and environment variables. An empty
// configFile searches the default locations; a missing file is not an error
// unless it was named explicitly.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.bt-discovery")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with every key at its default
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// defaults always decode
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	inquiry := bluetooth.DefaultInquiryConfig()

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/bt-discovery.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "bt_discovery")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Bluetooth defaults
	v.SetDefault("bluetooth.backend", bluetooth.BackendAuto)
	v.SetDefault("bluetooth.inquiry_length", int(inquiry.Length))
	v.SetDefault("bluetooth.max_responses", int(inquiry.MaxResponses))
	v.SetDefault("bluetooth.flush_cache", inquiry.FlushCache)
	v.SetDefault("bluetooth.timeout_multiplier", int(inquiry.TimeoutMultiplier))
	v.SetDefault("bluetooth.ble_enabled", false)
	v.SetDefault("bluetooth.ble_scan_duration", inquiry.LEScanDuration.String())
	v.SetDefault("bluetooth.connect_timeout", inquiry.ConnectTimeout.String())

	// Discovery defaults
	v.SetDefault("discovery.default_type", "bluetooth")
	v.SetDefault("discovery.scan_timeout", "90s")
	v.SetDefault("discovery.serial.enabled", true)
	v.SetDefault("discovery.usb.enabled", false)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_requests", 60)
	v.SetDefault("security.rate_limit_window", "1m")

	// mDNS defaults
	v.SetDefault("mdns.enabled", false)
	v.SetDefault("mdns.instance", "bt-discovery")
	v.SetDefault("mdns.service", "_btdiscovery._tcp")
	v.SetDefault("mdns.domain", "local.")

	// History defaults
	v.SetDefault("history.retention", "168h")
	v.SetDefault("history.cleanup_interval", "1h")
	v.SetDefault("history.default_limit", 50)

	// App defaults
	v.SetDefault("app.name", "bt-discovery")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	if !slices.Contains(validDrivers, config.Database.Driver) {
		return fmt.Errorf("database.driver must be one of: %v", validDrivers)
	}
	if config.Database.Driver == "sqlite" && config.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite")
	}
	if config.Database.Driver == "postgres" && config.Database.Host == "" {
		return fmt.Errorf("database.host is required for postgres")
	}

	bt := config.Bluetooth
	if !slices.Contains(validBackendList, bt.Backend) {
		return fmt.Errorf("bluetooth.backend must be one of: %v", validBackendList)
	}
	if bt.InquiryLength < 1 || bt.InquiryLength > 48 {
		return fmt.Errorf("bluetooth.inquiry_length must be between 1 and 48, got %d", bt.InquiryLength)
	}
	if bt.MaxResponses < 1 || bt.MaxResponses > 255 {
		return fmt.Errorf("bluetooth.max_responses must be between 1 and 255, got %d", bt.MaxResponses)
	}
	if bt.TimeoutMultiplier < 1 || bt.TimeoutMultiplier > 48 {
		return fmt.Errorf("bluetooth.timeout_multiplier must be between 1 and 48, got %d", bt.TimeoutMultiplier)
	}
	if bt.BLEScanDuration <= 0 {
		return fmt.Errorf("bluetooth.ble_scan_duration must be positive")
	}

	if !slices.Contains(validScanTypes, config.Discovery.DefaultType) {
		return fmt.Errorf("discovery.default_type must be one of: %v", validScanTypes)
	}
	for i, rule := range config.Discovery.MachineRules {
		if rule.Pattern == "" || rule.MachineType == "" {
			return fmt.Errorf("discovery.machine_rules[%d]: pattern and machine_type are required", i)
		}
	}

	if config.Security.RateLimitEnabled && (config.Security.RateLimitRequests <= 0 || config.Security.RateLimitWindow <= 0) {
		return fmt.Errorf("security.rate_limit_requests and rate_limit_window must be positive")
	}

	return nil
}

// Inquiry converts the bluetooth section to backend parameters
func (c *BluetoothConfig) Inquiry() bluetooth.InquiryConfig {
	return bluetooth.InquiryConfig{
		Length:            uint8(c.InquiryLength),
		MaxResponses:      uint8(c.MaxResponses),
		FlushCache:        c.FlushCache,
		TimeoutMultiplier: uint8(c.TimeoutMultiplier),
		LEScanDuration:    c.BLEScanDuration,
		ConnectTimeout:    c.ConnectTimeout,
	}
}

// GetDatabaseDSN returns the connection string for the configured driver
func (c *Config) GetDatabaseDSN() string {
	switch c.Database.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Host, c.Database.Port, c.Database.User,
			c.Database.Password, c.Database.DBName, c.Database.SSLMode)
	case "sqlite":
		return "file:" + c.Database.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	default:
		return ""
	}
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}

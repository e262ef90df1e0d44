// Btscan is the command line client for Bluetooth and serial device discovery.
//
// It scans for nearby devices and prints them, lists serial ports, initiates
// connections and removes paired devices by keyword.
//
// Usage:
//
//	btscan [command] [flags]
//
// See 'btscan --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bt-discovery/internal/classify"
	"bt-discovery/internal/config"
	"bt-discovery/internal/console"
	"bt-discovery/internal/repository"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
	"bt-discovery/internal/version"
)

// errScanFailed is returned after the diagnostic has already been printed
var errScanFailed = errors.New("scan failed")

var (
	configFile string
	logLevel   string
	outputFlag string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errScanFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "btscan",
	Short: "Bluetooth and serial device discovery",
	Long: `Discover Bluetooth, serial and USB devices from the command line.

Scans print one line per device, or the full report as JSON or YAML.
Configuration is read from config.yaml and BT_DISCOVERY_* environment
variables, the same way the discovery server reads it.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "text", "output format (text, json, yaml)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(unpairCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "btscan %s\n", version.Full())
	},
}

// session holds what every discovery command needs
type session struct {
	config    *config.Config
	logger    *zap.Logger
	scanners  *service.Scanners
	discovery *service.DiscoveryService
}

func (s *session) Close() {
	if s.logger != nil {
		_ = utils.CloseLogger(s.logger)
	}
}

// newSession loads the configuration and builds the scanners. Scan history
// stays in memory; the CLI never opens the database.
func newSession() (*session, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := utils.NewConsoleLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	classifier, err := classify.FromConfig(cfg.Discovery)
	if err != nil {
		_ = utils.CloseLogger(logger)
		return nil, err
	}

	scanners, err := service.BuildScanners(cfg, classifier, logger)
	if err != nil {
		_ = utils.CloseLogger(logger)
		return nil, err
	}

	return newSessionWith(cfg, scanners, logger), nil
}

func newSessionWith(cfg *config.Config, scanners *service.Scanners, logger *zap.Logger) *session {
	return &session{
		config:    cfg,
		logger:    logger,
		scanners:  scanners,
		discovery: service.NewDiscoveryService(scanners, repository.NewMemoryScanRepository(logger), nil, cfg, logger),
	}
}

func printerFor(cmd *cobra.Command) (*console.Printer, error) {
	format, err := console.ParseFormat(outputFlag)
	if err != nil {
		return nil, err
	}
	return console.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format), nil
}

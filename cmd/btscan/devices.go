package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bt-discovery/internal/console"
	"bt-discovery/internal/model"
	"bt-discovery/internal/pairing"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and USB devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := printerFor(cmd)
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		return runPorts(cmd.Context(), s, printer)
	},
}

// runPorts lists every enabled wired source. A source that fails is logged
// and skipped.
func runPorts(ctx context.Context, s *session, printer *console.Printer) error {
	sightings := []model.Sighting{}
	enabled := 0
	for _, source := range []string{model.SourceSerial, model.SourceUSB} {
		if _, ok := s.scanners.Manager.Get(source); !ok {
			continue
		}
		enabled++

		found, err := s.scanners.Manager.ScanByType(ctx, source)
		if err != nil {
			s.logger.Warn("Port listing failed", zap.String("source", source), zap.Error(err))
			continue
		}
		sightings = append(sightings, found...)
	}

	if enabled == 0 {
		return errors.New("serial and USB discovery are both disabled")
	}
	return printer.PrintPorts(sightings)
}

var connectCmd = &cobra.Command{
	Use:   "connect <mac-or-uuid>",
	Short: "Connect to a Bluetooth device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := printerFor(cmd)
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		return runConnect(cmd.Context(), s, args[0], printer)
	},
}

func runConnect(ctx context.Context, s *session, identifier string, printer *console.Printer) error {
	normalized, err := s.discovery.Connect(ctx, identifier)
	if err != nil {
		return err
	}
	return printer.PrintConnected(&service.ConnectResult{Identifier: normalized, Status: "connected"})
}

type unpairOptions struct {
	keywordFile string
	dryRun      bool
}

var unpairOpts unpairOptions

var unpairCmd = &cobra.Command{
	Use:   "unpair",
	Short: "Remove paired devices whose name matches a keyword",
	Long: `Remove every paired Bluetooth device whose name contains one of the
keywords in the given file. Matching ignores case.

Plain files hold one keyword per line; .yaml files hold a list.
Requires bluetoothctl.`,
	Example: `  btscan unpair --keywords printers.txt --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := printerFor(cmd)
		if err != nil {
			return err
		}

		keywords, err := pairing.LoadKeywords(unpairOpts.keywordFile)
		if err != nil {
			return err
		}

		logger, err := utils.NewConsoleLogger(logLevel)
		if err != nil {
			return err
		}
		defer func() { _ = utils.CloseLogger(logger) }()

		return runUnpair(cmd.Context(), pairing.NewManager(nil, logger), keywords, unpairOpts.dryRun, printer)
	},
}

func init() {
	unpairCmd.Flags().StringVarP(&unpairOpts.keywordFile, "keywords", "k", "", "keyword file")
	unpairCmd.Flags().BoolVar(&unpairOpts.dryRun, "dry-run", false, "only report what would be removed")
	_ = unpairCmd.MarkFlagRequired("keywords")
}

func runUnpair(ctx context.Context, m *pairing.Manager, keywords []string, dryRun bool, printer *console.Printer) error {
	if len(keywords) == 0 {
		return errors.New("no keywords given")
	}

	results, err := m.Unpair(ctx, keywords, dryRun)
	if err != nil {
		return err
	}
	return printer.PrintUnpair(results, dryRun)
}

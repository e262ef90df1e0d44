package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"bt-discovery/internal/console"
	"bt-discovery/internal/model"
	"bt-discovery/internal/pairing"
	"bt-discovery/internal/service"
	"bt-discovery/internal/ui"
)

type scanOptions struct {
	scanType    string
	interactive bool
	connect     bool
	filter      string
	keywords    []string
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby devices",
	Long: `Run one discovery pass and print the devices found.

With --interactive the devices are shown in a list to pick from; --connect
then initiates a connection to the chosen device.`,
	Example: `  btscan scan
  btscan scan --type all -o json
  btscan scan --interactive --filter printers.txt --connect`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := printerFor(cmd)
		if err != nil {
			return err
		}

		opts := scanOpts
		if opts.filter != "" {
			if opts.keywords, err = pairing.LoadKeywords(opts.filter); err != nil {
				return err
			}
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if opts.interactive {
			return runInteractive(cmd.Context(), s, opts, printer)
		}
		return runScan(cmd.Context(), s, opts, printer)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.scanType, "type", "t", "", "scan type (bluetooth, ble, serial, usb, all)")
	scanCmd.Flags().BoolVarP(&scanOpts.interactive, "interactive", "i", false, "pick a device from a list")
	scanCmd.Flags().BoolVar(&scanOpts.connect, "connect", false, "connect to the picked device (with --interactive)")
	scanCmd.Flags().StringVar(&scanOpts.filter, "filter", "", "keyword file; only matching devices are shown")
}

func runScan(ctx context.Context, s *session, opts scanOptions, printer *console.Printer) error {
	report, err := s.discovery.ScanDevices(ctx, &service.ScanRequest{ScanType: opts.scanType})
	if err != nil {
		return err
	}

	console.FilterReport(report, opts.keywords)
	if err := printer.PrintReport(report); err != nil {
		return err
	}
	if report.Outcome == model.OutcomeFailed {
		return errScanFailed
	}
	return nil
}

func runInteractive(ctx context.Context, s *session, opts scanOptions, printer *console.Printer) error {
	scan := func() ([]model.Sighting, error) {
		report, err := s.discovery.ScanDevices(ctx, &service.ScanRequest{ScanType: opts.scanType})
		if err != nil {
			return nil, err
		}
		if report.Outcome == model.OutcomeFailed {
			return nil, errors.New(report.Diagnostic)
		}
		return report.Sightings, nil
	}

	choice, err := ui.Pick(scan, opts.keywords)
	if err != nil {
		return err
	}
	if choice == nil {
		return nil
	}

	if !opts.connect {
		return printer.PrintReport(&service.ScanReport{
			ScanType:  choice.Source,
			Outcome:   model.OutcomeDevicesFound,
			Sightings: []model.Sighting{*choice},
			Devices:   []model.DeviceInfo{choice.Device},
		})
	}
	return runConnect(ctx, s, choice.Address, printer)
}

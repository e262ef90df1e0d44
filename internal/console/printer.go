// internal/console/printer.go
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/model"
	"bt-discovery/internal/pairing"
	"bt-discovery/internal/service"
)

// Format selects how results are written
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an --output value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Printer writes command results to the console
type Printer struct {
	out    io.Writer
	errOut io.Writer
	format Format
	styled bool
}

// NewPrinter creates a printer. Text output is styled when out is a terminal.
func NewPrinter(out, errOut io.Writer, format Format) *Printer {
	return &Printer{
		out:    out,
		errOut: errOut,
		format: format,
		styled: format == FormatText && IsTerminal(out),
	}
}

// WithStyle forces styling on or off
func (p *Printer) WithStyle(styled bool) *Printer {
	p.styled = styled
	return p
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

// PrintReport writes a scan report
func (p *Printer) PrintReport(report *service.ScanReport) error {
	switch p.format {
	case FormatJSON:
		return p.encodeJSON(report)
	case FormatYAML:
		return p.encodeYAML(report)
	}

	if report.Outcome == model.OutcomeFailed {
		fmt.Fprintln(p.errOut, p.render(ErrorStyle, report.Diagnostic))
		return nil
	}
	if len(report.Sightings) == 0 {
		fmt.Fprintln(p.out, noDevicesLine(report.ScanType))
		return nil
	}

	for _, sg := range report.Sightings {
		fmt.Fprintln(p.out, p.render(DeviceStyle, SightingLine(sg)))
	}
	if report.Diagnostic != "" {
		fmt.Fprintln(p.errOut, p.render(WarningStyle, report.Diagnostic))
	}
	if p.styled {
		fmt.Fprintln(p.out, SummaryStyle.Render(fmt.Sprintf("%d device(s) via %s in %dms",
			len(report.Sightings), report.Backend, report.DurationMS)))
	}
	return nil
}

func noDevicesLine(scanType string) string {
	if scanType == model.SourceBluetooth {
		return "No Bluetooth devices found."
	}
	return "No devices found."
}

// SightingLine renders the console line for one sighting. Bluetooth lines
// keep the classic "Bluetooth device found" form.
func SightingLine(sg model.Sighting) string {
	switch sg.Source {
	case model.SourceBluetooth, model.SourceBLE, "":
		return bluetooth.FormatSighting(sg)
	}

	label := strings.ToUpper(sg.Source)
	name := sg.Device.DisplayName()
	if name == "" || name == sg.Address {
		return fmt.Sprintf("%s device found: %s", label, sg.Address)
	}
	return fmt.Sprintf("%s device found: %s - %s", label, name, sg.Address)
}

// PrintPorts writes the serial and USB sightings
func (p *Printer) PrintPorts(sightings []model.Sighting) error {
	switch p.format {
	case FormatJSON:
		return p.encodeJSON(sightings)
	case FormatYAML:
		return p.encodeYAML(sightings)
	}

	if len(sightings) == 0 {
		fmt.Fprintln(p.out, "No ports found.")
		return nil
	}
	for _, sg := range sightings {
		fmt.Fprintf(p.out, "%s\t%s\t%s\n",
			p.render(DeviceStyle, sg.Device.ComPortName),
			sg.Device.InterfaceType,
			p.render(AddressStyle, sg.Address),
		)
	}
	return nil
}

// PrintUnpair writes the outcome of an unpair run
func (p *Printer) PrintUnpair(results []pairing.Result, dryRun bool) error {
	switch p.format {
	case FormatJSON:
		return p.encodeJSON(results)
	case FormatYAML:
		return p.encodeYAML(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(p.out, "No paired devices match the keywords.")
		return nil
	}
	for _, r := range results {
		switch {
		case dryRun:
			fmt.Fprintf(p.out, "%s Would remove %s (%s) [%s]\n", DryRunMarker, r.Device.Name, r.Device.Address, r.Keyword)
		case r.Removed:
			fmt.Fprintf(p.out, "%s Unpaired and deleted device: %s (%s)\n", p.render(DeviceStyle, SuccessMarker), r.Device.Name, r.Device.Address)
		default:
			fmt.Fprintf(p.errOut, "%s Error unpairing %s (%s): %s\n", p.render(ErrorStyle, FailureMarker), r.Device.Name, r.Device.Address, r.Error)
		}
	}
	return nil
}

// PrintConnected writes the result of a connect request
func (p *Printer) PrintConnected(result *service.ConnectResult) error {
	switch p.format {
	case FormatJSON:
		return p.encodeJSON(result)
	case FormatYAML:
		return p.encodeYAML(result)
	}
	fmt.Fprintf(p.out, "%s %s %s\n", p.render(DeviceStyle, SuccessMarker), result.Status, result.Identifier)
	return nil
}

func (p *Printer) encodeJSON(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// encodeYAML goes through JSON so YAML keys match the JSON field names
func (p *Printer) encodeYAML(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// FilterSightings keeps the sightings whose name or address contains one of
// keywords. No keywords keeps everything.
func FilterSightings(sightings []model.Sighting, keywords []string) []model.Sighting {
	if len(keywords) == 0 {
		return sightings
	}
	out := []model.Sighting{}
	for _, sg := range sightings {
		if _, ok := pairing.MatchKeyword(sg.Device.DisplayName()+" "+sg.Address, keywords); ok {
			out = append(out, sg)
		}
	}
	return out
}

// FilterReport applies FilterSightings to a report in place
func FilterReport(report *service.ScanReport, keywords []string) {
	if len(keywords) == 0 {
		return
	}
	report.Sightings = FilterSightings(report.Sightings, keywords)
	report.Devices = model.Devices(report.Sightings)
}

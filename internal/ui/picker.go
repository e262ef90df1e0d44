// internal/ui/picker.go
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"bt-discovery/internal/model"
	"bt-discovery/internal/pairing"
)

// ScanFunc runs one discovery pass for the picker
type ScanFunc func() ([]model.Sighting, error)

type scanStartMsg struct{}
type scanCompleteMsg struct {
	sightings []model.Sighting
	err       error
}

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Rescan key.Binding
	Filter key.Binding
	Quit   key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Filter, k.Rescan, k.Quit}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Filter, k.Rescan, k.Quit},
	}
}

// deviceItem wraps a Sighting for bubbles/list
type deviceItem struct {
	sighting model.Sighting
}

func (d deviceItem) FilterValue() string {
	return d.sighting.Device.DisplayName() + " " + d.sighting.Address
}

func (d deviceItem) Title() string {
	if name := d.sighting.Device.BTFriendlyName; name != "" {
		return name
	}
	return d.sighting.Address
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("%s • %s • %s",
		d.sighting.Address, d.sighting.Device.InterfaceType, d.sighting.Device.MachineType)
}

// PickerModel scans for devices and lets the user pick one
type PickerModel struct {
	scan     ScanFunc
	keywords []string

	Scanning bool
	List     list.Model
	Spinner  spinner.Model
	Help     help.Model
	Keys     pickerKeyMap
	Err      error

	Choice   *model.Sighting
	Quitting bool

	Width  int
	Height int
}

// NewPickerModel creates a picker. Sightings whose name and address match
// none of keywords are hidden; no keywords shows everything.
func NewPickerModel(scan ScanFunc, keywords []string) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	width := GetTerminalWidth()
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), width, DefaultHeight)
	l.Title = "Discovered Devices"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	keys := pickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return PickerModel{
		scan:     scan,
		keywords: keywords,
		List:     l,
		Spinner:  s,
		Help:     help.New(),
		Keys:     keys,
		Width:    width,
		Height:   DefaultHeight,
	}
}

// Init starts the first scan
func (m PickerModel) Init() tea.Cmd {
	return m.startScan()
}

func (m PickerModel) startScan() tea.Cmd {
	scan := m.scan
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			sightings, err := scan()
			return scanCompleteMsg{sightings: sightings, err: err}
		},
		m.Spinner.Tick,
	)
}

// Update handles messages
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// While the filter prompt is open keys belong to the list
		if m.List.FilterState() == list.Filtering {
			m.List, cmd = m.List.Update(msg)
			return m, cmd
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.List.SetSize(msg.Width-4, msg.Height-4)

	case scanStartMsg:
		m.Scanning = true
		m.Err = nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		cmd = m.List.SetItems(m.items(msg.sightings))
		return m, cmd

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.Scanning {
		m.List, cmd = m.List.Update(msg)
	}
	return m, cmd
}

func (m PickerModel) items(sightings []model.Sighting) []list.Item {
	items := make([]list.Item, 0, len(sightings))
	for _, sg := range sightings {
		if len(m.keywords) > 0 {
			if _, ok := pairing.MatchKeyword(sg.Device.DisplayName()+" "+sg.Address, m.keywords); !ok {
				continue
			}
		}
		items = append(items, deviceItem{sighting: sg})
	}
	return items
}

func (m PickerModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return m, tea.Quit

	case m.Scanning:
		return m, nil

	case key.Matches(msg, m.Keys.Select):
		if item, ok := m.List.SelectedItem().(deviceItem); ok {
			choice := item.sighting
			m.Choice = &choice
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		m.List.SetItems([]list.Item{})
		return m, m.startScan()
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

// View renders the picker
func (m PickerModel) View() string {
	if m.Quitting || m.Choice != nil {
		return ""
	}

	var b strings.Builder
	switch {
	case m.Scanning:
		b.WriteString(StatusStyle.Render(m.Spinner.View() + " Scanning for devices..."))
	case m.Err != nil:
		b.WriteString(ErrorStyle.Render(m.Err.Error()))
	case len(m.List.Items()) == 0:
		b.WriteString(StatusStyle.Render("No devices found. Press r to rescan."))
	default:
		b.WriteString(m.List.View())
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	return b.String()
}

// Pick runs the picker until the user selects a device or quits. A nil
// sighting with a nil error means the user quit without choosing.
func Pick(scan ScanFunc, keywords []string, opts ...tea.ProgramOption) (*model.Sighting, error) {
	final, err := tea.NewProgram(NewPickerModel(scan, keywords), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("device picker failed: %w", err)
	}
	m, ok := final.(PickerModel)
	if !ok {
		return nil, nil
	}
	return m.Choice, m.Err
}

package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bt-discovery/internal/model"
)

func testSightings() []model.Sighting {
	printer := model.NewDeviceInfo()
	printer.BTFriendlyName = "Receipt Printer"
	printer.InterfaceType = model.InterfaceBT

	phones := model.NewDeviceInfo()
	phones.BTFriendlyName = "Headphones"
	phones.InterfaceType = model.InterfaceBT

	return []model.Sighting{
		{Source: model.SourceBluetooth, Address: "00:11:22:33:44:55", Device: printer},
		{Source: model.SourceBluetooth, Address: "AA:BB:CC:DD:EE:FF", Device: phones},
	}
}

func update(t *testing.T, m PickerModel, msg tea.Msg) (PickerModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(PickerModel)
	require.True(t, ok)
	return pm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPicker_SelectsDevice(t *testing.T) {
	m := NewPickerModel(func() ([]model.Sighting, error) { return testSightings(), nil }, nil)
	require.NotNil(t, m.Init())

	m, _ = update(t, m, scanStartMsg{})
	assert.True(t, m.Scanning)
	assert.Contains(t, m.View(), "Scanning for devices")

	m, _ = update(t, m, scanCompleteMsg{sightings: testSightings()})
	assert.False(t, m.Scanning)
	assert.Len(t, m.List.Items(), 2)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.Choice)
	assert.Equal(t, "00:11:22:33:44:55", m.Choice.Address)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestPicker_KeywordFilter(t *testing.T) {
	m := NewPickerModel(nil, []string{"phones"})
	m, _ = update(t, m, scanCompleteMsg{sightings: testSightings()})

	require.Len(t, m.List.Items(), 1)
	item, ok := m.List.Items()[0].(deviceItem)
	require.True(t, ok)
	assert.Equal(t, "Headphones", item.Title())
}

func TestPicker_QuitWithoutChoice(t *testing.T) {
	m := NewPickerModel(nil, nil)
	m, _ = update(t, m, scanStartMsg{})

	// Only quit works while scanning
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Nil(t, m.Choice)

	m, cmd = update(t, m, runes("q"))
	assert.True(t, m.Quitting)
	assert.Nil(t, m.Choice)
	require.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestPicker_ScanErrorAndEmpty(t *testing.T) {
	m := NewPickerModel(nil, nil)

	m, _ = update(t, m, scanCompleteMsg{err: errors.New("bluetooth not available or no adapter found")})
	assert.Contains(t, m.View(), "bluetooth not available or no adapter found")

	m, cmd := update(t, m, runes("r"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, scanStartMsg{})
	assert.NoError(t, m.Err)

	m, _ = update(t, m, scanCompleteMsg{})
	assert.Contains(t, m.View(), "No devices found")
}

func TestDeviceItem(t *testing.T) {
	sg := testSightings()[0]
	item := deviceItem{sighting: sg}
	assert.Equal(t, "Receipt Printer", item.Title())
	assert.Contains(t, item.FilterValue(), "00:11:22:33:44:55")
	assert.Contains(t, item.Description(), "00:11:22:33:44:55")

	sg.Device.BTFriendlyName = ""
	assert.Equal(t, "00:11:22:33:44:55", deviceItem{sighting: sg}.Title())
}

// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChangeMsg carries the sound controls chosen in the UI
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
	Pan    float64
}

// QuitMsg is sent when the user quits the UI
type QuitMsg struct{}

// VolumeControl holds channels for volume control communication
type VolumeControl struct {
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewVolumeControl creates a new volume control handler
func NewVolumeControl() *VolumeControl {
	return &VolumeControl{
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(volCtrl *VolumeControl, source string) Model {
	return Model{
		source:     source,
		volume:     100,
		state:      "stopped",
		volumeCtrl: volCtrl,
	}
}

// Run creates the TUI program. The caller runs it and feeds it StatusMsg
// updates with Send.
func Run(volCtrl *VolumeControl, source string) *tea.Program {
	return tea.NewProgram(NewModel(volCtrl, source), tea.WithAltScreen())
}

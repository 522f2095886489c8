// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Renders the buffer slot ring, stream format, stats and sound controls
package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Resonate-Protocol/streamplay/pkg/streamplay"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	boxWidth     = 52 // inner width between the borders
	slotsPerRow  = 48
	maxSlotRows  = 4
	volumeStep   = 5
	panStep      = 0.1
	errorDisplay = 46
)

// Model represents the TUI state
type Model struct {
	source string

	// Session
	state     string
	sessionID string

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Sound
	volume int
	muted  bool
	pan    float64

	// Engine
	stats streamplay.PlayerStats
	slots []bool
	err   string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	volumeCtrl *VolumeControl
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case ErrorMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderControls()
	s += m.renderSlots()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the source and session state
func (m Model) renderHeader() string {
	return "┌─ Streamplay " + strings.Repeat("─", boxWidth-11) + "┐\n" +
		line("Source: "+m.source) +
		line("State:  "+m.state) +
		divider()
}

// renderStreamInfo renders the bound format
func (m Model) renderStreamInfo() string {
	if m.codec == "" {
		return line("No stream")
	}

	format := fmt.Sprintf("Format: %s %dHz %s", m.codec, m.sampleRate, channelName(m.channels))
	if m.bitDepth > 0 {
		format += fmt.Sprintf(" %d-bit", m.bitDepth)
	}
	return line(format)
}

// renderControls renders volume, mute and pan
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	return line("") +
		line(fmt.Sprintf("Volume: [%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)) +
		line(fmt.Sprintf("Pan:    [%s] %+.1f", renderPan(m.pan, 11), m.pan))
}

// renderSlots renders one cell per buffer slot, busy or free
func (m Model) renderSlots() string {
	s := divider()
	s += line(fmt.Sprintf("Buffers: %d/%d busy", m.stats.SlotsBusy, len(m.slots)))

	rows := 0
	for start := 0; start < len(m.slots); start += slotsPerRow {
		if rows == maxSlotRows {
			s += line(fmt.Sprintf("  +%d more", len(m.slots)-start))
			break
		}
		end := min(start+slotsPerRow, len(m.slots))

		var b strings.Builder
		b.WriteString("  ")
		for _, busy := range m.slots[start:end] {
			if busy {
				b.WriteString("█")
			} else {
				b.WriteString("░")
			}
		}
		s += line(b.String())
		rows++
	}
	return s
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	st := m.stats
	s := divider()
	s += line(fmt.Sprintf("Packets: %d  Dropped: %d  Waits: %d", st.Packets, st.Dropped, st.Backpressure))
	s += line(fmt.Sprintf("Queued: %d  Played: %d  Errors: %d", st.Enqueued, st.Completed, st.EnqueueErrors))
	if m.err != "" {
		s += line("Error: " + truncate(m.err, errorDisplay))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return divider() +
		line("↑/↓:Volume  ←/→:Pan  m:Mute  d:Debug  q:Quit") +
		"└" + strings.Repeat("─", boxWidth+2) + "┘\n"
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return line("DEBUG:") +
		line("  Session: "+m.sessionID) +
		line(fmt.Sprintf("  Unknown buffers: %d  Rebinds: %d", m.stats.UnknownBuffers, m.stats.Rebinds))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(100, m.volume+volumeStep)
		m.sendVolume()
	case "down":
		m.volume = max(0, m.volume-volumeStep)
		m.sendVolume()
	case "left":
		m.pan = max(-1, roundPan(m.pan-panStep))
		m.sendVolume()
	case "right":
		m.pan = min(1, roundPan(m.pan+panStep))
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume forwards the sound controls without blocking the UI
func (m Model) sendVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted, Pan: m.pan}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
	}
	if st := msg.Player; st != nil {
		m.state = st.State
		m.sessionID = st.SessionID
		m.codec = st.Codec
		m.sampleRate = st.SampleRate
		m.channels = st.Channels
		m.bitDepth = st.BitDepth
		m.volume = st.Volume
		m.muted = st.Muted
		m.pan = st.Pan
	}
	if msg.Stats != nil {
		m.stats = *msg.Stats
	}
	if msg.Slots != nil {
		m.slots = msg.Slots
	}
}

// StatusMsg updates TUI state. Nil fields leave the model unchanged.
type StatusMsg struct {
	Source string
	Player *streamplay.PlayerState
	Stats  *streamplay.PlayerStats
	Slots  []bool
}

// ErrorMsg shows the latest player error
type ErrorMsg struct {
	Err error
}

// Utility functions
func line(s string) string {
	return fmt.Sprintf("│ %-*s │\n", boxWidth, truncate(s, boxWidth))
}

func divider() string {
	return "├" + strings.Repeat("─", boxWidth+2) + "┤\n"
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

// renderPan draws a centered track with a marker at the balance position
func renderPan(pan float64, width int) string {
	pos := int((pan + 1) / 2 * float64(width-1))
	pos = max(0, min(width-1, pos))
	cells := []rune(strings.Repeat("─", width))
	cells[width/2] = '┼'
	cells[pos] = '●'
	return string(cells)
}

func roundPan(pan float64) float64 {
	return math.Round(pan*10) / 10
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// ABOUTME: Bubbletea model for the keyboard TUI
// ABOUTME: Turns key presses into note on/off words for a sender
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/omnimidi/kdmapi-go/pkg/midiword"
)

// Sender accepts packed short MIDI messages
type Sender interface {
	SendDirectData(data uint32)
}

// Settings are the model's initial values
type Settings struct {
	Channel    uint8
	Program    uint8
	Velocity   uint8
	Octave     int
	NoteLength time.Duration

	// Target describes where notes go, e.g. "local driver" or a bridge address
	Target string
}

// Model represents the TUI state
type Model struct {
	sender Sender
	keys   keyMap

	// Settings
	channel    uint8
	program    uint8
	velocity   uint8
	octave     int
	noteLength time.Duration
	target     string

	// held counts pending note offs per key
	held map[uint8]int

	// Stats
	lastNote string
	sent     int

	// Dimensions
	width  int
	height int
}

// noteOffMsg releases a note after the note length
type noteOffMsg struct {
	key uint8
}

// StatusMsg updates the target shown in the header
type StatusMsg struct {
	Target string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	heldStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("212"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NewModel creates a new TUI model
func NewModel(sender Sender, s Settings) Model {
	if s.NoteLength <= 0 {
		s.NoteLength = 400 * time.Millisecond
	}
	if s.Velocity == 0 {
		s.Velocity = 100
	}

	return Model{
		sender:     sender,
		keys:       defaultKeyMap(),
		channel:    s.Channel & 0x0F,
		program:    s.Program & 0x7F,
		velocity:   s.Velocity & 0x7F,
		octave:     s.Octave,
		noteLength: s.NoteLength,
		target:     s.Target,
		held:       make(map[uint8]int),
	}
}

// Init selects the configured program
func (m Model) Init() tea.Cmd {
	sender, word := m.sender, midiword.ProgramChange(m.channel, m.program)
	return func() tea.Msg {
		sender.SendDirectData(word)
		return nil
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case noteOffMsg:
		m.release(msg.key)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		if msg.Target != "" {
			m.target = msg.Target
		}
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.silence()
		return m, tea.Quit
	case key.Matches(msg, m.keys.OctaveDown):
		if m.octave > 0 {
			m.octave--
		}
	case key.Matches(msg, m.keys.OctaveUp):
		if m.octave < 9 {
			m.octave++
		}
	case key.Matches(msg, m.keys.VelocityUp):
		m.velocity = clamp7(int(m.velocity) + 8)
	case key.Matches(msg, m.keys.VelocityDown):
		m.velocity = clamp7(int(m.velocity) - 8)
	case key.Matches(msg, m.keys.ProgramNext):
		m.program = (m.program + 1) & 0x7F
		m.send(midiword.ProgramChange(m.channel, m.program))
	case key.Matches(msg, m.keys.ProgramPrev):
		m.program = (m.program - 1) & 0x7F
		m.send(midiword.ProgramChange(m.channel, m.program))
	case key.Matches(msg, m.keys.Panic):
		m.silence()
	default:
		if semitone, ok := noteKeys[msg.String()]; ok {
			return m.press(semitone)
		}
	}

	return m, nil
}

// press sends note on and schedules the matching note off
func (m Model) press(semitone uint8) (tea.Model, tea.Cmd) {
	note := 12*(m.octave+1) + int(semitone)
	if note > 127 {
		return m, nil
	}
	k := uint8(note)

	m.send(midiword.NoteOn(m.channel, k, m.velocity))
	m.held[k]++
	m.lastNote = noteName(k)

	return m, tea.Tick(m.noteLength, func(time.Time) tea.Msg {
		return noteOffMsg{key: k}
	})
}

// release sends note off once the last pending press of a key expires
func (m *Model) release(k uint8) {
	n, ok := m.held[k]
	if !ok {
		return
	}
	if n > 1 {
		m.held[k] = n - 1
		return
	}
	delete(m.held, k)
	m.send(midiword.NoteOff(m.channel, k))
}

// silence silences every channel and forgets held notes
func (m *Model) silence() {
	for _, w := range midiword.Panic() {
		m.send(w)
	}
	for k := range m.held {
		delete(m.held, k)
	}
}

func (m *Model) send(word uint32) {
	m.sender.SendDirectData(word)
	m.sent++
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("kdmapi keys"))
	if m.target != "" {
		b.WriteString(labelStyle.Render("  → " + m.target))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d   %s %d\n",
		labelStyle.Render("channel"), m.channel+1,
		labelStyle.Render("program"), m.program,
		labelStyle.Render("octave"), m.octave,
		labelStyle.Render("velocity"), m.velocity))
	b.WriteString(labelStyle.Render("velocity ") + renderBar(int(m.velocity), 127, 16) + "\n\n")

	b.WriteString(m.renderKeyboard())
	b.WriteString("\n")

	last := m.lastNote
	if last == "" {
		last = "-"
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %d\n\n", labelStyle.Render("last"), last, labelStyle.Render("sent"), m.sent))

	b.WriteString(m.renderHelp())

	return boxStyle.Render(b.String()) + "\n"
}

// renderKeyboard draws the playable keys, highlighting held notes
func (m Model) renderKeyboard() string {
	order := []string{"a", "w", "s", "e", "d", "f", "t", "g", "y", "h", "u", "j", "k", "o", "l"}

	cells := make([]string, 0, len(order))
	for _, k := range order {
		note := 12*(m.octave+1) + int(noteKeys[k])
		label := fmt.Sprintf("%s\n%s", k, "—")
		if note <= 127 {
			label = fmt.Sprintf("%s\n%s", k, noteName(uint8(note)))
		}

		style := keyStyle
		if note <= 127 && m.held[uint8(note)] > 0 {
			style = heldStyle
		}
		cells = append(cells, style.Width(4).Align(lipgloss.Center).Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	parts := make([]string, 0, 8)
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return labelStyle.Render(strings.Join(parts, "  "))
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func noteName(k uint8) string {
	return fmt.Sprintf("%s%d", noteNames[k%12], int(k)/12-1)
}

func clamp7(v int) uint8 {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

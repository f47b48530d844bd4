// ABOUTME: Key bindings for the keyboard TUI
// ABOUTME: Maps the computer keyboard onto one and a bit octaves
package ui

import "github.com/charmbracelet/bubbles/key"

// noteKeys maps keys to semitones above the current octave's C. The home
// row plays white keys, the row above plays black keys.
var noteKeys = map[string]uint8{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13, "l": 14,
}

type keyMap struct {
	OctaveDown   key.Binding
	OctaveUp     key.Binding
	VelocityUp   key.Binding
	VelocityDown key.Binding
	ProgramNext  key.Binding
	ProgramPrev  key.Binding
	Panic        key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		OctaveDown:   key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "octave-")),
		OctaveUp:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "octave+")),
		VelocityUp:   key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "velocity+")),
		VelocityDown: key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "velocity-")),
		ProgramNext:  key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "program+")),
		ProgramPrev:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "program-")),
		Panic:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "panic")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.OctaveDown, k.OctaveUp, k.VelocityUp, k.VelocityDown, k.ProgramPrev, k.ProgramNext, k.Panic, k.Quit}
}

// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the keyboard UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run creates the keyboard program; the caller runs it
func Run(sender Sender, s Settings) *tea.Program {
	return tea.NewProgram(NewModel(sender, s), tea.WithAltScreen())
}

// ABOUTME: Standard MIDI File playback through a KDMAPI sender
// ABOUTME: Merges tracks, schedules events and silences on cancellation
// Package sequencer plays Standard MIDI Files through anything that accepts
// packed short messages, such as a *kdmapi.Binding.
//
// Example:
//
//	events, err := sequencer.LoadFile("song.mid")
//	p := sequencer.NewPlayer(kdmapi.Default())
//	result, err := p.Play(ctx, events)
package sequencer

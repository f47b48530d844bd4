// ABOUTME: Packing of short MIDI messages into KDMAPI words
// ABOUTME: Status in the low byte, data bytes above it
package midiword

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

var (
	// ErrEmpty is returned for an empty message.
	ErrEmpty = errors.New("midiword: empty message")

	// ErrNotShort is returned for system exclusive, meta and realtime-only
	// data that does not fit a short message word.
	ErrNotShort = errors.New("midiword: not a short message")
)

// Pack converts a short channel or system common message to a word.
func Pack(msg midi.Message) (uint32, error) {
	b := msg.Bytes()
	if len(b) == 0 {
		return 0, ErrEmpty
	}

	status := b[0]
	if status < 0x80 {
		return 0, fmt.Errorf("midiword: running status %#02x: %w", status, ErrNotShort)
	}
	if status == 0xF0 || status == 0xF7 || status == 0xFF {
		return 0, fmt.Errorf("midiword: status %#02x: %w", status, ErrNotShort)
	}

	want := messageLength(status)
	if len(b) != want {
		return 0, fmt.Errorf("midiword: status %#02x needs %d bytes, got %d: %w", status, want, len(b), ErrNotShort)
	}

	var word uint32
	for i, v := range b {
		word |= uint32(v) << (8 * i)
	}
	return word, nil
}

// Unpack recovers the message held in word. Bytes past the status byte's
// message length are ignored.
func Unpack(word uint32) midi.Message {
	status := byte(word)
	n := messageLength(status)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(word >> (8 * i))
	}
	return midi.Message(b)
}

// messageLength returns the total length of a short message by status byte.
func messageLength(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 2
	case 0xF0:
		switch status {
		case 0xF1, 0xF3:
			return 2
		case 0xF2:
			return 3
		default:
			return 1
		}
	default:
		return 3
	}
}

func mustPack(msg midi.Message) uint32 {
	w, err := Pack(msg)
	if err != nil {
		panic(err)
	}
	return w
}

// NoteOn returns a note on word. channel is 0-15.
func NoteOn(channel, key, velocity uint8) uint32 {
	return mustPack(midi.NoteOn(channel&0x0F, key&0x7F, velocity&0x7F))
}

// NoteOff returns a note off word with zero release velocity.
func NoteOff(channel, key uint8) uint32 {
	return mustPack(midi.NoteOff(channel&0x0F, key&0x7F))
}

// ProgramChange returns a program change word.
func ProgramChange(channel, program uint8) uint32 {
	return mustPack(midi.ProgramChange(channel&0x0F, program&0x7F))
}

// ControlChange returns a control change word.
func ControlChange(channel, controller, value uint8) uint32 {
	return mustPack(midi.ControlChange(channel&0x0F, controller&0x7F, value&0x7F))
}

// AllNotesOff returns the channel mode message silencing channel.
func AllNotesOff(channel uint8) uint32 {
	return ControlChange(channel, 123, 0)
}

// Panic returns all notes off words for every channel.
func Panic() []uint32 {
	words := make([]uint32, 16)
	for ch := range words {
		words[ch] = AllNotesOff(uint8(ch))
	}
	return words
}

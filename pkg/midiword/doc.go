// ABOUTME: Packing of short MIDI messages into KDMAPI data words
// ABOUTME: Converts gomidi messages to and from the driver's uint32 format
// Package midiword converts short MIDI messages to the 32-bit words taken
// by the driver's SendDirectData entry point.
//
// The status byte occupies bits 0-7, the first data byte bits 8-15 and the
// second data byte bits 16-23:
//
//	word := midiword.NoteOn(0, 0x30, 0x7F) // 0x007F3090
package midiword

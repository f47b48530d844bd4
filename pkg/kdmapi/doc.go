// ABOUTME: Runtime binding to the OmniMIDI KDMAPI driver
// ABOUTME: Loads the driver at runtime and wraps its stream lifecycle
// Package kdmapi drives an installed OmniMIDI driver through Keppy's
// Direct MIDI API without linking against it at build time.
//
// The driver module is located at runtime (bare name first, then the
// vendor directory under the system directory), its four entry points
// are bound to typed Go funcs, and the stream lifecycle is exposed as:
//   - Start: load, bind, initialize and verify the driver
//   - SendDirectData: forward one packed short MIDI message
//   - Stop: terminate the stream
//
// Start is strict and reports every failure. SendDirectData and Stop never
// fail: they are no-ops while the binding is inactive, and the driver's
// return values are ignored.
//
// Example:
//
//	if err := kdmapi.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer kdmapi.Stop()
//
//	// note on, channel 1, C4, velocity 127
//	kdmapi.SendDirectData(0x007F3090)
//
// For tests or embedding, build an explicitly owned binding with New and
// an injected Loader. Only one Binding in the process can be active at a
// time; Start on any other returns ErrAlreadyInitialized until it stops.
package kdmapi

//go:build darwin

// ABOUTME: macOS driver file and library directory
// ABOUTME: Used by the dlopen loader
package kdmapi

// DriverFile is the driver module's file name.
const DriverFile = "libOmniMIDI.dylib"

const systemDirectory = "/usr/local/lib"

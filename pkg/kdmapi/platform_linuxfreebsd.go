//go:build linux || freebsd

// ABOUTME: Linux and FreeBSD driver file and library directory
// ABOUTME: Used by the dlopen loader
package kdmapi

// DriverFile is the driver module's file name.
const DriverFile = "libOmniMIDI.so"

const systemDirectory = "/usr/lib"

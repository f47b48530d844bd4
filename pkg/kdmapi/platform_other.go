//go:build !windows && !darwin && !linux && !freebsd

// ABOUTME: Loader for platforms without dynamic loading
// ABOUTME: Every operation fails with errUnsupportedPlatform
package kdmapi

import "errors"

// DriverFile is the driver module's file name.
const DriverFile = "OmniMIDI"

var errUnsupportedPlatform = errors.New("kdmapi: dynamic loading is not supported on this platform")

type platformLoader struct{}

func (platformLoader) LoadByName(string) (Module, error) { return nil, errUnsupportedPlatform }

func (platformLoader) LoadByPath(string) (Module, error) { return nil, errUnsupportedPlatform }

func (platformLoader) SystemDirectory() (string, error) { return "", errUnsupportedPlatform }

//go:build windows || darwin || linux || freebsd

// ABOUTME: Binds C function addresses to Go funcs
// ABOUTME: Accepts only the KDMAPI entry point signatures
package kdmapi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// bindFunc turns a C function address into a Go func stored in fnPtr.
// Only the KDMAPI signatures are accepted so RegisterFunc never panics on
// an unexpected type.
func bindFunc(fnPtr any, addr uintptr) error {
	if addr == 0 {
		return fmt.Errorf("kdmapi: nil function address")
	}
	switch fnPtr.(type) {
	case *func() bool, *func(uint32) uint32:
	default:
		return fmt.Errorf("kdmapi: unsupported entry point signature %T", fnPtr)
	}
	purego.RegisterFunc(fnPtr, addr)
	return nil
}

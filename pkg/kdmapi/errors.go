// ABOUTME: Error taxonomy for the KDMAPI binding
// ABOUTME: Sentinel errors and diagnostics carrying platform error codes
package kdmapi

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrAlreadyInitialized is returned by Start while a session is active.
	ErrAlreadyInitialized = errors.New("kdmapi: already initialized")

	// ErrModuleLoad matches every *ModuleLoadError.
	ErrModuleLoad = errors.New("kdmapi: failed to load driver module")

	// ErrSymbolResolution matches every *SymbolError.
	ErrSymbolResolution = errors.New("kdmapi: failed to resolve driver entry point")

	// ErrDriverInitialization is returned when InitializeKDMAPIStream reports failure.
	ErrDriverInitialization = errors.New("kdmapi: driver failed to initialize")

	// ErrDriverDisabled is returned when the driver initialized but is disabled in its settings.
	ErrDriverDisabled = errors.New("kdmapi: driver was able to be initialized, but is currently disabled in settings")

	// ErrSystemDirectoryTruncated is returned when the system directory does not fit the query buffer.
	ErrSystemDirectoryTruncated = errors.New("kdmapi: system directory query truncated")
)

// ModuleLoadError reports that neither the bare name nor the fallback path
// could be loaded. Code is the platform error of the fallback attempt.
type ModuleLoadError struct {
	Name string
	Path string
	Code uint32
	Err  error
}

func (e *ModuleLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("kdmapi: failed to load %s! GLE: %#x: %v", e.Name, e.Code, e.Err)
	}
	return fmt.Sprintf("kdmapi: failed to load %s (fallback %s)! GLE: %#x: %v", e.Name, e.Path, e.Code, e.Err)
}

func (e *ModuleLoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrModuleLoad) match.
func (e *ModuleLoadError) Is(target error) bool { return target == ErrModuleLoad }

// SymbolError reports a driver entry point that could not be resolved.
type SymbolError struct {
	Symbol string
	Code   uint32
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("kdmapi: failed to find function %s! GLE: %#x: %v", e.Symbol, e.Code, e.Err)
}

func (e *SymbolError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSymbolResolution) match.
func (e *SymbolError) Is(target error) bool { return target == ErrSymbolResolution }

// ErrorCode extracts the platform error code carried by err, or 0 when the
// platform did not report one (dlerror only reports text).
func ErrorCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}

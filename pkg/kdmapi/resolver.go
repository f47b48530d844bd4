// ABOUTME: Driver module resolution
// ABOUTME: Tries the bare module name, then the vendor directory under the system directory
package kdmapi

import (
	"path/filepath"

	"go.uber.org/zap"
)

// VendorDir is the subdirectory of the system directory the driver installs into.
const VendorDir = "OmniMIDI"

// Loader is the platform's module loading capability.
type Loader interface {
	// LoadByName loads a module using the platform's default search order.
	LoadByName(name string) (Module, error)

	// LoadByPath loads a module from a fully qualified path.
	LoadByPath(path string) (Module, error)

	// SystemDirectory returns the platform's system components directory.
	SystemDirectory() (string, error)
}

// Module is a loaded driver module. It is never unloaded.
type Module interface {
	// Bind resolves the exported symbol and stores a callable with the
	// signature of *fnPtr into fnPtr.
	Bind(fnPtr any, symbol string) error
}

// Resolver finds and loads the driver module.
type Resolver struct {
	loader    Loader
	name      string
	vendorDir string
	join      func(elem ...string) string
}

// NewResolver creates a resolver for the platform's driver file name.
func NewResolver(loader Loader) *Resolver {
	return &Resolver{
		loader:    loader,
		name:      DriverFile,
		vendorDir: VendorDir,
		join:      filepath.Join,
	}
}

// FallbackPath returns the fully qualified path tried when the bare name fails.
func (r *Resolver) FallbackPath() (string, error) {
	sysDir, err := r.loader.SystemDirectory()
	if err != nil {
		return "", err
	}
	return r.join(sysDir, r.vendorDir, r.name), nil
}

// Resolve loads the driver module. The bare name is tried first; on failure
// the fallback path is tried once and its error is reported.
func (r *Resolver) Resolve() (Module, error) {
	mod, err := r.loader.LoadByName(r.name)
	if err == nil {
		Logger().Debug("driver module loaded", zap.String("name", r.name))
		return mod, nil
	}
	Logger().Debug("bare module load failed, trying system directory",
		zap.String("name", r.name), zap.Error(err))

	path, err := r.FallbackPath()
	if err != nil {
		return nil, &ModuleLoadError{Name: r.name, Code: ErrorCode(err), Err: err}
	}

	mod, err = r.loader.LoadByPath(path)
	if err != nil {
		return nil, &ModuleLoadError{Name: r.name, Path: path, Code: ErrorCode(err), Err: err}
	}

	Logger().Debug("driver module loaded", zap.String("path", path))
	return mod, nil
}

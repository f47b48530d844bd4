//go:build darwin || linux || freebsd

// ABOUTME: dlopen-based driver loader
// ABOUTME: Resolves symbols with dlsym through purego
package kdmapi

import (
	"github.com/ebitengine/purego"
)

type platformLoader struct{}

// LoadByName lets the dynamic linker search LD_LIBRARY_PATH, the cache and
// the default library directories.
func (platformLoader) LoadByName(name string) (Module, error) {
	return openLibrary(name)
}

func (platformLoader) LoadByPath(path string) (Module, error) {
	return openLibrary(path)
}

func (platformLoader) SystemDirectory() (string, error) {
	return systemDirectory, nil
}

func openLibrary(path string) (Module, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}
	return &platformModule{handle: h, name: path}, nil
}

type platformModule struct {
	handle uintptr
	name   string
}

func (m *platformModule) Bind(fnPtr any, symbol string) error {
	addr, err := purego.Dlsym(m.handle, symbol)
	if err != nil {
		return err
	}
	return bindFunc(fnPtr, addr)
}

//go:build windows

// ABOUTME: Windows driver loader
// ABOUTME: LoadLibrary, GetProcAddress and GetSystemDirectoryW
package kdmapi

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// DriverFile is the driver module's file name.
const DriverFile = "OmniMIDI.dll"

var (
	modkernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemDirectoryW = modkernel32.NewProc("GetSystemDirectoryW")
)

type platformLoader struct{}

// LoadByName uses the standard DLL search order (application directory,
// current directory, system directories, PATH).
func (platformLoader) LoadByName(name string) (Module, error) {
	h, err := windows.LoadLibrary(name)
	if err != nil {
		return nil, err
	}
	return &platformModule{handle: h, name: name}, nil
}

func (platformLoader) LoadByPath(path string) (Module, error) {
	h, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return nil, err
	}
	return &platformModule{handle: h, name: path}, nil
}

func (platformLoader) SystemDirectory() (string, error) {
	return querySystemDirectory(func(buf []uint16) (uint32, error) {
		r1, _, e1 := procGetSystemDirectoryW.Call(uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if r1 == 0 {
			return 0, e1
		}
		return uint32(r1), nil
	})
}

type platformModule struct {
	handle windows.Handle
	name   string
}

func (m *platformModule) Bind(fnPtr any, symbol string) error {
	addr, err := windows.GetProcAddress(m.handle, symbol)
	if err != nil {
		return err
	}
	return bindFunc(fnPtr, addr)
}

// ABOUTME: In-memory driver loader for binding tests
// ABOUTME: Counts loads, symbol lookups and driver calls
package kdmapi

import (
	"fmt"
	"sync"
	"syscall"
)

// fakeDriver simulates the driver's four entry points.
type fakeDriver struct {
	initOK      bool
	available   bool
	terminateOK bool

	initCalls      int
	availableCalls int
	terminateCalls int

	mu   sync.Mutex
	sent []uint32
}

func (d *fakeDriver) sentWords() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.sent...)
}

// fakeLoader simulates the platform loader.
type fakeLoader struct {
	driver *fakeDriver

	failName bool
	failPath bool
	sysDir   string
	sysErr   error

	// missing symbols fail to bind with ERROR_PROC_NOT_FOUND
	missing map[string]bool

	nameLoads []string
	pathLoads []string
	binds     map[string]int
}

func newFakeLoader(driver *fakeDriver) *fakeLoader {
	return &fakeLoader{
		driver:  driver,
		sysDir:  "sys",
		missing: make(map[string]bool),
		binds:   make(map[string]int),
	}
}

func newHealthyDriver() *fakeDriver {
	return &fakeDriver{initOK: true, available: true, terminateOK: true}
}

const (
	errModNotFound  = syscall.Errno(0x7e)
	errProcNotFound = syscall.Errno(0x7f)
)

func (l *fakeLoader) LoadByName(name string) (Module, error) {
	l.nameLoads = append(l.nameLoads, name)
	if l.failName {
		return nil, errModNotFound
	}
	return &fakeModule{loader: l}, nil
}

func (l *fakeLoader) LoadByPath(path string) (Module, error) {
	l.pathLoads = append(l.pathLoads, path)
	if l.failPath {
		return nil, errModNotFound
	}
	return &fakeModule{loader: l}, nil
}

func (l *fakeLoader) SystemDirectory() (string, error) {
	return l.sysDir, l.sysErr
}

type fakeModule struct {
	loader *fakeLoader
}

func (m *fakeModule) Bind(fnPtr any, symbol string) error {
	l := m.loader
	l.binds[symbol]++
	if l.missing[symbol] {
		return errProcNotFound
	}

	d := l.driver
	switch symbol {
	case SymInitializeStream:
		*fnPtr.(*func() bool) = func() bool { d.initCalls++; return d.initOK }
	case SymIsAvailable:
		*fnPtr.(*func() bool) = func() bool { d.availableCalls++; return d.available }
	case SymSendDirectData:
		*fnPtr.(*func(uint32) uint32) = func(v uint32) uint32 {
			d.mu.Lock()
			d.sent = append(d.sent, v)
			d.mu.Unlock()
			return 0
		}
	case SymTerminateStream:
		*fnPtr.(*func() bool) = func() bool { d.terminateCalls++; return d.terminateOK }
	default:
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	return nil
}

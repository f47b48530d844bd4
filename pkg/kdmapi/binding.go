// ABOUTME: KDMAPI binding state machine
// ABOUTME: Start/SendDirectData/Stop lifecycle, one active stream per process
package kdmapi

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Binding owns one driver session. The zero value is not usable; create one
// with New or use Default.
type Binding struct {
	resolver *Resolver

	// mu guards entries. Start and Stop take the write lock, SendDirectData
	// the read lock.
	mu sync.RWMutex

	// entries is non-nil only while a session is active.
	entries *entryPoints

	sent atomic.Uint64
}

// Option configures a Binding.
type Option func(*Binding)

// WithLoader replaces the platform loader.
func WithLoader(loader Loader) Option {
	return func(b *Binding) {
		b.resolver.loader = loader
	}
}

// WithDriverFile overrides the driver module's file name.
func WithDriverFile(name string) Option {
	return func(b *Binding) {
		if name != "" {
			b.resolver.name = name
		}
	}
}

// WithVendorDir overrides the subdirectory searched under the system directory.
func WithVendorDir(dir string) Option {
	return func(b *Binding) {
		if dir != "" {
			b.resolver.vendorDir = dir
		}
	}
}

// New creates an inactive binding.
func New(opts ...Option) *Binding {
	b := &Binding{resolver: NewResolver(platformLoader{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	defaultBinding     *Binding
	defaultBindingOnce sync.Once
)

// Default returns the process-wide binding using the platform loader.
func Default() *Binding {
	defaultBindingOnce.Do(func() {
		defaultBinding = New()
	})
	return defaultBinding
}

// session is the binding holding the driver stream. The driver keeps one
// stream per process, so only one Binding may be active at a time.
var session atomic.Pointer[Binding]

// Start loads the driver, binds its entry points and opens a stream.
//
// Every call resolves the module and all entry points again. The binding
// becomes active only if all of them resolved, the stream initialized and
// the driver reports itself available. Start returns ErrAlreadyInitialized
// while this or any other Binding in the process is active.
func (b *Binding) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entries != nil {
		return ErrAlreadyInitialized
	}
	if !session.CompareAndSwap(nil, b) {
		Logger().Warn("another binding holds the driver stream")
		return ErrAlreadyInitialized
	}

	ep, err := b.open()
	if err != nil {
		session.CompareAndSwap(b, nil)
		return err
	}

	b.entries = ep
	Logger().Info("driver stream started")
	return nil
}

// open resolves the driver and opens its stream.
func (b *Binding) open() (*entryPoints, error) {
	mod, err := b.resolver.Resolve()
	if err != nil {
		Logger().Warn("driver module load failed", zap.Error(err))
		return nil, err
	}

	ep, err := resolveEntryPoints(mod)
	if err != nil {
		Logger().Warn("driver entry point resolution failed", zap.Error(err))
		return nil, err
	}

	if !ep.initializeStream() {
		Logger().Warn("driver stream initialization failed")
		return nil, ErrDriverInitialization
	}

	if !ep.isAvailable() {
		// The driver's stream is open at this point; close it so a disabled
		// driver is not left with a session nobody will stop.
		ep.terminateStream()
		Logger().Warn("driver is disabled in its settings")
		return nil, ErrDriverDisabled
	}
	return ep, nil
}

// SendDirectData forwards one packed short MIDI message to the driver.
// It does nothing while the binding is inactive.
func (b *Binding) SendDirectData(data uint32) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.entries == nil {
		return
	}
	b.entries.sendDirectData(data)
	b.sent.Add(1)
}

// Stop terminates the stream. The binding becomes inactive whatever the
// driver reports, so Start can be retried. It does nothing while inactive.
func (b *Binding) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entries == nil {
		return
	}
	if !b.entries.terminateStream() {
		Logger().Debug("driver reported failure terminating stream")
	}
	b.entries = nil
	session.CompareAndSwap(b, nil)
	Logger().Info("driver stream stopped")
}

// Active reports whether a stream is open.
func (b *Binding) Active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries != nil
}

// Sent returns the number of words forwarded to the driver.
func (b *Binding) Sent() uint64 {
	return b.sent.Load()
}

// FallbackPath returns the path tried when loading by bare name fails.
func (b *Binding) FallbackPath() (string, error) {
	return b.resolver.FallbackPath()
}

// Start starts the process-wide binding.
func Start() error { return Default().Start() }

// SendDirectData forwards data through the process-wide binding.
func SendDirectData(data uint32) { Default().SendDirectData(data) }

// Stop stops the process-wide binding.
func Stop() { Default().Stop() }

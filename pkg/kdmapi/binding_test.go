// ABOUTME: Tests for the KDMAPI binding lifecycle
// ABOUTME: Covers start/stop transitions, failures and no-op paths
package kdmapi

import (
	"errors"
	"sync"
	"testing"
)

// newTestBinding stops the binding when the test ends so the process-wide
// stream is free for the next test.
func newTestBinding(t *testing.T, l *fakeLoader) *Binding {
	t.Helper()
	b := New(WithLoader(l), WithDriverFile("OmniMIDI.dll"))
	t.Cleanup(b.Stop)
	return b
}

func TestStartSendStop(t *testing.T) {
	d := newHealthyDriver()
	b := newTestBinding(t, newFakeLoader(d))

	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !b.Active() {
		t.Fatal("expected binding to be active after Start")
	}

	b.SendDirectData(0x007F3090)
	if sent := d.sentWords(); len(sent) != 1 || sent[0] != 0x007F3090 {
		t.Fatalf("expected driver to receive 0x007F3090 once, got %#v", sent)
	}
	if b.Sent() != 1 {
		t.Errorf("expected Sent() = 1, got %d", b.Sent())
	}

	b.Stop()
	if d.terminateCalls != 1 {
		t.Errorf("expected 1 terminate call, got %d", d.terminateCalls)
	}
	if b.Active() {
		t.Error("expected binding to be inactive after Stop")
	}
}

func TestStartTwiceRejected(t *testing.T) {
	l := newFakeLoader(newHealthyDriver())
	b := newTestBinding(t, l)

	if err := b.Start(); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	first := b.entries

	err := b.Start()
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if b.entries != first {
		t.Error("entry points changed after rejected Start")
	}
	if len(l.nameLoads) != 1 {
		t.Errorf("rejected Start should not load the module, got %d loads", len(l.nameLoads))
	}
}

func TestStartModuleLoadFailure(t *testing.T) {
	l := newFakeLoader(newHealthyDriver())
	l.failName = true
	l.failPath = true
	b := newTestBinding(t, l)

	err := b.Start()
	if !errors.Is(err, ErrModuleLoad) {
		t.Fatalf("expected ErrModuleLoad, got %v", err)
	}

	var loadErr *ModuleLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *ModuleLoadError, got %T", err)
	}
	if loadErr.Code != uint32(errModNotFound) {
		t.Errorf("expected code %#x, got %#x", uint32(errModNotFound), loadErr.Code)
	}
	if len(l.binds) != 0 {
		t.Errorf("expected no symbol lookups, got %v", l.binds)
	}
	if b.entries != nil || b.Active() {
		t.Error("expected no entry points after load failure")
	}
}

func TestStartSymbolFailureResolvesAgain(t *testing.T) {
	for _, symbol := range []string{SymInitializeStream, SymIsAvailable, SymSendDirectData, SymTerminateStream} {
		t.Run(symbol, func(t *testing.T) {
			d := newHealthyDriver()
			l := newFakeLoader(d)
			l.missing[symbol] = true
			b := newTestBinding(t, l)

			err := b.Start()
			var symErr *SymbolError
			if !errors.As(err, &symErr) {
				t.Fatalf("expected *SymbolError, got %v", err)
			}
			if symErr.Symbol != symbol {
				t.Errorf("expected symbol %s, got %s", symbol, symErr.Symbol)
			}
			if symErr.Code != uint32(errProcNotFound) {
				t.Errorf("expected code %#x, got %#x", uint32(errProcNotFound), symErr.Code)
			}
			if !errors.Is(err, ErrSymbolResolution) {
				t.Error("expected errors.Is(err, ErrSymbolResolution)")
			}
			if b.Active() {
				t.Fatal("binding active after symbol failure")
			}
			if d.initCalls != 0 {
				t.Error("driver initialized despite missing symbol")
			}

			before := make(map[string]int, len(l.binds))
			for k, v := range l.binds {
				before[k] = v
			}

			delete(l.missing, symbol)
			if err := b.Start(); err != nil {
				t.Fatalf("retry Start failed: %v", err)
			}
			for _, s := range []string{SymInitializeStream, SymIsAvailable, SymSendDirectData, SymTerminateStream} {
				if l.binds[s] != before[s]+1 {
					t.Errorf("symbol %s: expected one lookup on retry, got %d", s, l.binds[s]-before[s])
				}
			}
			if len(l.nameLoads) != 2 {
				t.Errorf("expected module loaded on every Start, got %d", len(l.nameLoads))
			}
		})
	}
}

func TestStartDriverInitializationFailure(t *testing.T) {
	d := newHealthyDriver()
	d.initOK = false
	b := newTestBinding(t, newFakeLoader(d))

	if err := b.Start(); !errors.Is(err, ErrDriverInitialization) {
		t.Fatalf("expected ErrDriverInitialization, got %v", err)
	}
	if b.Active() {
		t.Error("binding active after driver initialization failure")
	}
	if d.availableCalls != 0 {
		t.Error("availability checked after failed initialization")
	}
}

func TestStartDriverDisabled(t *testing.T) {
	d := newHealthyDriver()
	d.available = false
	b := newTestBinding(t, newFakeLoader(d))

	if err := b.Start(); !errors.Is(err, ErrDriverDisabled) {
		t.Fatalf("expected ErrDriverDisabled, got %v", err)
	}
	if d.terminateCalls != 1 {
		t.Errorf("expected the opened stream to be terminated once, got %d", d.terminateCalls)
	}

	b.SendDirectData(0x007F3090)
	b.SendDirectData(0x00003080)
	if sent := d.sentWords(); len(sent) != 0 {
		t.Errorf("expected no data forwarded, got %#v", sent)
	}
	if b.Sent() != 0 {
		t.Errorf("expected Sent() = 0, got %d", b.Sent())
	}
}

func TestSendWhileInactive(t *testing.T) {
	l := newFakeLoader(newHealthyDriver())
	b := newTestBinding(t, l)

	b.SendDirectData(0x007F3090)

	if len(l.nameLoads) != 0 || len(l.binds) != 0 {
		t.Error("SendDirectData touched the loader while inactive")
	}
	if len(l.driver.sentWords()) != 0 {
		t.Error("SendDirectData reached the driver while inactive")
	}
}

func TestStopWhileInactive(t *testing.T) {
	d := newHealthyDriver()
	b := newTestBinding(t, newFakeLoader(d))

	b.Stop()

	if d.terminateCalls != 0 {
		t.Error("Stop reached the driver while inactive")
	}
	if b.Active() {
		t.Error("expected binding to stay inactive")
	}
}

func TestStopIgnoresTerminateFailure(t *testing.T) {
	d := newHealthyDriver()
	d.terminateOK = false
	b := newTestBinding(t, newFakeLoader(d))

	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b.Stop()

	if b.Active() {
		t.Fatal("expected binding inactive after Stop even when terminate fails")
	}
	if err := b.Start(); err != nil {
		t.Fatalf("expected Start to succeed after Stop, got %v", err)
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("expected Default to return the same binding")
	}
}

func TestSecondBindingRejectedWhileActive(t *testing.T) {
	d := newHealthyDriver()
	l := newFakeLoader(d)
	a := newTestBinding(t, l)
	b := newTestBinding(t, l)

	if err := a.Start(); err != nil {
		t.Fatalf("first binding Start failed: %v", err)
	}
	if err := b.Start(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized from second binding, got %v", err)
	}
	if d.initCalls != 1 {
		t.Errorf("expected InitializeKDMAPIStream once, got %d", d.initCalls)
	}
	if len(l.nameLoads) != 1 {
		t.Errorf("rejected binding should not load the module, got %d loads", len(l.nameLoads))
	}
	if b.Active() {
		t.Error("second binding active while the first holds the stream")
	}

	// Stop on the inactive binding must not release the other's stream
	b.Stop()
	if err := b.Start(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected stream still held after inactive Stop, got %v", err)
	}

	a.Stop()
	if err := b.Start(); err != nil {
		t.Fatalf("second binding Start after first stopped failed: %v", err)
	}
	if !b.Active() {
		t.Error("expected second binding active")
	}
}

func TestFailedStartReleasesStream(t *testing.T) {
	bad := newFakeLoader(newHealthyDriver())
	bad.failName = true
	bad.failPath = true
	a := newTestBinding(t, bad)

	if err := a.Start(); !errors.Is(err, ErrModuleLoad) {
		t.Fatalf("expected ErrModuleLoad, got %v", err)
	}

	b := newTestBinding(t, newFakeLoader(newHealthyDriver()))
	if err := b.Start(); err != nil {
		t.Fatalf("expected Start to succeed after another binding failed, got %v", err)
	}
}

func TestConcurrentSendStartStop(t *testing.T) {
	d := newHealthyDriver()
	b := newTestBinding(t, newFakeLoader(d))

	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	const senders = 8
	const perSender = 500

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(ch uint32) {
			defer wg.Done()
			for n := 0; n < perSender; n++ {
				b.SendDirectData(0x007F3090 | ch)
				_ = b.Active()
			}
		}(uint32(i))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < 50; n++ {
			b.Stop()
			if err := b.Start(); err != nil {
				t.Errorf("restart %d failed: %v", n, err)
				return
			}
		}
	}()

	wg.Wait()

	if got, want := uint64(len(d.sentWords())), b.Sent(); got != want {
		t.Errorf("driver received %d words, Sent() reports %d", got, want)
	}
	if b.Sent() > senders*perSender {
		t.Errorf("Sent() = %d exceeds words sent", b.Sent())
	}
	if d.initCalls != d.terminateCalls+1 {
		t.Errorf("expected one open stream, got %d inits and %d terminates", d.initCalls, d.terminateCalls)
	}
}

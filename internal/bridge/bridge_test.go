// ABOUTME: Tests for the kdmapi bridge server and client
// ABOUTME: Runs both ends over httptest and records forwarded words
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/omnimidi/kdmapi-go/internal/version"
	"github.com/omnimidi/kdmapi-go/pkg/midiword"
)

type recordingSender struct {
	mu     sync.Mutex
	words  []uint32
	active bool
}

func (r *recordingSender) SendDirectData(data uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.words = append(r.words, data)
}

func (r *recordingSender) Active() bool { return r.active }

func (r *recordingSender) snapshot() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.words...)
}

// waitForWords polls until at least n words were recorded
func waitForWords(t *testing.T, r *recordingSender, n int) []uint32 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if words := r.snapshot(); len(words) >= n {
			return words
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d words, got %d", n, len(r.snapshot()))
	return nil
}

func startTestServer(t *testing.T, sender Sender) (*Server, string) {
	t.Helper()

	s, err := NewServer(Config{Name: "test bridge"}, sender)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, strings.TrimPrefix(ts.URL, "http://")
}

func TestNewServerRequiresSender(t *testing.T) {
	if _, err := NewServer(Config{}, nil); err == nil {
		t.Fatal("expected error without sender")
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	sender := &recordingSender{active: true}
	s, addr := startTestServer(t, sender)

	c := NewClient(ClientConfig{ServerAddr: addr, Name: "keys"})
	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	hello := c.Server()
	if hello.ServerID != s.ID() {
		t.Errorf("expected server id %s, got %s", s.ID(), hello.ServerID)
	}
	if !hello.DriverActive {
		t.Error("expected driver_active in server hello")
	}
	if hello.Manufacturer != version.Manufacturer {
		t.Errorf("expected manufacturer %q, got %q", version.Manufacturer, hello.Manufacturer)
	}

	if err := c.Send(0x007F3090, midiword.NoteOff(0, 0x30)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	words := waitForWords(t, sender, 2)
	if words[0] != 0x007F3090 || words[1] != midiword.NoteOff(0, 0x30) {
		t.Errorf("unexpected words: %#v", words)
	}

	stats := s.Stats()
	if stats.Clients != 1 || stats.Frames != 1 || stats.Words != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// disconnect silences all channels
	words = waitForWords(t, sender, 2+16)
	if words[len(words)-1] != midiword.AllNotesOff(15) {
		t.Errorf("expected all notes off after disconnect, got %#08x", words[len(words)-1])
	}

	if err := c.Send(1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestServerDropsMisalignedFrames(t *testing.T) {
	sender := &recordingSender{}
	s, addr := startTestServer(t, sender)

	c := NewClient(ClientConfig{ServerAddr: addr})
	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	c.mu.Lock()
	err := c.conn.WriteMessage(websocket.BinaryMessage, []byte{0x90, 0x30, 0x7F})
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := c.Send(0x007F3090); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	words := waitForWords(t, sender, 1)
	if len(words) != 1 || words[0] != 0x007F3090 {
		t.Errorf("expected only the aligned frame forwarded, got %#v", words)
	}
	if s.Stats().Dropped != 1 {
		t.Errorf("expected 1 dropped frame, got %d", s.Stats().Dropped)
	}
}

func TestServerRejectsDuplicateClientID(t *testing.T) {
	_, addr := startTestServer(t, &recordingSender{})

	first := NewClient(ClientConfig{ServerAddr: addr, ClientID: "same"})
	if err := first.Dial(context.Background()); err != nil {
		t.Fatalf("first Dial failed: %v", err)
	}
	defer first.Close()

	second := NewClient(ClientConfig{ServerAddr: addr, ClientID: "same"})
	err := second.Dial(context.Background())
	if err == nil || !strings.Contains(err.Error(), "duplicate_client_id") {
		t.Fatalf("expected duplicate_client_id rejection, got %v", err)
	}
}

func TestServerRequiresHello(t *testing.T) {
	_, addr := startTestServer(t, &recordingSender{})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/kdmapi", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeWords([]uint32{1})); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed without hello")
	}
}

func TestServeShutdown(t *testing.T) {
	s, err := NewServer(Config{Port: 1}, &recordingSender{})
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager setup and service entry conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "Studio",
		Port:        8928,
	})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.Path != "/kdmapi" {
		t.Errorf("expected default path /kdmapi, got %s", mgr.config.Path)
	}
	mgr.Stop()
}

func TestEntryToServer(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "Studio._kdmapi._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       9000,
		InfoFields: []string{"path=/midi"},
	}

	server := entryToServer(entry)
	if server == nil {
		t.Fatal("expected server")
	}
	if server.Name != "Studio" {
		t.Errorf("expected name Studio, got %s", server.Name)
	}
	if server.Addr() != "192.168.1.20:9000" {
		t.Errorf("unexpected addr %s", server.Addr())
	}
	if server.Path != "/midi" {
		t.Errorf("expected path /midi, got %s", server.Path)
	}
}

func TestEntryToServerWithoutIPv4(t *testing.T) {
	if entryToServer(&mdns.ServiceEntry{Name: "x"}) != nil {
		t.Error("expected nil for entry without IPv4 address")
	}
	if entryToServer(nil) != nil {
		t.Error("expected nil for nil entry")
	}
}

func TestStopClosesBrowse(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Studio", Port: 8928})
	mgr.Stop()
	// browseLoop returns immediately on a cancelled context
	mgr.browseLoop()
}

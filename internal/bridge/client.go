// ABOUTME: WebSocket client for kdmapi bridges
// ABOUTME: Performs the handshake and sends packed MIDI words
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned when sending on a closed client
var ErrClosed = errors.New("bridge: client closed")

// ClientConfig holds client configuration
type ClientConfig struct {
	// ServerAddr is the bridge address (host:port)
	ServerAddr string

	// Path of the WebSocket endpoint (default: /kdmapi)
	Path string

	// Name is the display name for this client
	Name string

	// ClientID identifies the client (default: random uuid)
	ClientID string

	Logger *zap.Logger
}

// Client sends MIDI words to a bridge. It satisfies Sender so it can stand
// in for a local binding.
type Client struct {
	config ClientConfig
	log    *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	server ServerHello
	closed bool
}

// NewClient creates an unconnected client
func NewClient(config ClientConfig) *Client {
	if config.Path == "" {
		config.Path = "/kdmapi"
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name = "kdmapi client"
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{config: config, log: log}
}

// Dial connects and performs the handshake
func (c *Client) Dial(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.log.Debug("connecting to bridge", zap.String("url", u.String()))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	hello, err := handshake(conn, ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  ProtocolVersion,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.server = hello
	c.closed = false
	c.mu.Unlock()

	c.log.Info("connected to bridge",
		zap.String("name", hello.Name),
		zap.String("id", hello.ServerID),
		zap.Bool("driver_active", hello.DriverActive))

	// drain control frames so pings are answered
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	return nil
}

func handshake(conn *websocket.Conn, hello ClientHello) (ServerHello, error) {
	data, err := EncodeMessage(TypeClientHello, hello)
	if err != nil {
		return ServerHello{}, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return ServerHello{}, fmt.Errorf("failed to send %s: %w", TypeClientHello, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		return ServerHello{}, fmt.Errorf("failed to read %s: %w", TypeServerHello, err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerHello{}, fmt.Errorf("failed to parse %s: %w", TypeServerHello, err)
	}

	switch msg.Type {
	case TypeServerHello:
		var sh ServerHello
		if err := json.Unmarshal(msg.Payload, &sh); err != nil {
			return ServerHello{}, fmt.Errorf("failed to parse %s: %w", TypeServerHello, err)
		}
		return sh, nil
	case TypeServerError:
		var se ServerError
		_ = json.Unmarshal(msg.Payload, &se)
		return ServerHello{}, fmt.Errorf("server rejected client: %s: %s", se.Error, se.Message)
	default:
		return ServerHello{}, fmt.Errorf("expected %s, got %s", TypeServerHello, msg.Type)
	}
}

// Server returns the bridge's hello
func (c *Client) Server() ServerHello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// Send sends words in one frame
func (c *Client) Send(words ...uint32) error {
	if len(words) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, EncodeWords(words)); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// SendDirectData sends one word, logging instead of returning errors
func (c *Client) SendDirectData(data uint32) {
	if err := c.Send(data); err != nil {
		c.log.Debug("dropping word", zap.Uint32("word", data), zap.Error(err))
	}
}

// Close says goodbye and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed {
		return nil
	}
	c.closed = true

	if data, err := EncodeMessage(TypeClientGoodbye, struct{}{}); err == nil {
		_ = c.conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// ABOUTME: WebSocket bridge forwarding remote MIDI to the local driver
// ABOUTME: Handles handshakes, client registry and binary word frames
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/omnimidi/kdmapi-go/internal/discovery"
	"github.com/omnimidi/kdmapi-go/internal/version"
	"github.com/omnimidi/kdmapi-go/pkg/midiword"
	"go.uber.org/zap"
)

// Sender accepts packed short MIDI messages
type Sender interface {
	SendDirectData(data uint32)
}

// ActiveSender optionally reports driver state in the server hello
type ActiveSender interface {
	Sender
	Active() bool
}

// Config holds bridge server configuration
type Config struct {
	// Name of the bridge for identification
	Name string

	// Port to listen on (default: 8928)
	Port int

	// Path of the WebSocket endpoint (default: /kdmapi)
	Path string

	// EnableMDNS enables mDNS advertisement
	EnableMDNS bool

	// HandshakeTimeout bounds the wait for client/hello (default: 5s)
	HandshakeTimeout time.Duration

	Logger *zap.Logger
}

// Stats are bridge counters
type Stats struct {
	Clients int
	Frames  uint64
	Words   uint64
	Dropped uint64
}

// Server forwards MIDI words received over WebSocket to a Sender
type Server struct {
	config   Config
	serverID string
	sender   Sender
	log      *zap.Logger

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server

	clients   map[string]*client
	clientsMu sync.RWMutex

	// sendMu serializes words from concurrent clients
	sendMu sync.Mutex

	frames  atomic.Uint64
	words   atomic.Uint64
	dropped atomic.Uint64

	mdnsManager *discovery.Manager

	wg sync.WaitGroup
}

type client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	// writeMu serializes writes; gorilla connections allow one writer
	writeMu sync.Mutex
}

// NewServer creates a bridge server
func NewServer(config Config, sender Sender) (*Server, error) {
	if sender == nil {
		return nil, errors.New("bridge: sender is required")
	}
	if config.Port == 0 {
		config.Port = 8928
	}
	if config.Path == "" {
		config.Path = "/kdmapi"
	}
	if config.Name == "" {
		config.Name = "kdmapi bridge"
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		sender:   sender,
		log:      log,
		mux:      http.NewServeMux(),
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{
			// Bridges serve trusted local networks; browsers on other
			// origins are accepted but logged.
			CheckOrigin: func(r *http.Request) bool {
				if origin := r.Header.Get("Origin"); origin != "" {
					log.Debug("accepting WebSocket from origin", zap.String("origin", origin))
				}
				return true
			},
		},
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)

	return s, nil
}

// Handler returns the HTTP handler serving the bridge endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the server's session id
func (s *Server) ID() string {
	return s.serverID
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        s.config.Path,
			Logger:      s.log,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn("failed to start mDNS advertisement", zap.Error(err))
		}
		defer s.mdnsManager.Stop()
	}

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	s.log.Info("bridge listening",
		zap.String("name", s.config.Name),
		zap.String("addr", ln.Addr().String()),
		zap.String("path", s.config.Path),
		zap.String("id", s.serverID))

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("bridge server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("bridge shutdown error", zap.Error(err))
	}
	s.closeClients()
	s.wg.Wait()
	return nil
}

// Stats returns current counters
func (s *Server) Stats() Stats {
	s.clientsMu.RLock()
	n := len(s.clients)
	s.clientsMu.RUnlock()

	return Stats{
		Clients: n,
		Frames:  s.frames.Load(),
		Words:   s.words.Load(),
		Dropped: s.dropped.Load(),
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	s.log.Debug("new WebSocket connection", zap.String("remote", r.RemoteAddr))

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	hello, err := s.readHello(conn)
	if err != nil {
		s.log.Info("handshake failed", zap.Error(err))
		return
	}

	c := &client{
		ID:   hello.ClientID,
		Name: hello.Name,
		Conn: conn,
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[c.ID]; exists {
		s.clientsMu.Unlock()
		s.log.Info("rejecting duplicate client id",
			zap.String("id", c.ID), zap.String("existing", existing.Name))
		_ = c.writeJSON(TypeServerError, ServerError{
			Error:   "duplicate_client_id",
			Message: "Client ID already connected",
		})
		return
	}
	s.clients[c.ID] = c
	s.clientsMu.Unlock()

	s.log.Info("client connected", zap.String("name", c.Name), zap.String("id", c.ID))

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.ID)
		s.clientsMu.Unlock()

		// release anything the client left sounding
		s.send(midiword.Panic())
		s.log.Info("client disconnected", zap.String("name", c.Name))
	}()

	serverHello := ServerHello{
		ServerID:     s.serverID,
		Name:         s.config.Name,
		Version:      ProtocolVersion,
		Product:      version.Product + "/" + version.Version,
		Manufacturer: version.Manufacturer,
	}
	if as, ok := s.sender.(ActiveSender); ok {
		serverHello.DriverActive = as.Active()
	}
	if err := c.writeJSON(TypeServerHello, serverHello); err != nil {
		s.log.Info("error sending server hello", zap.Error(err))
		return
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(c, stopPing)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handleFrame(c, data)
		case websocket.TextMessage:
			if s.handleText(c, data) {
				return
			}
		}
	}
}

// readHello waits for and validates client/hello
func (s *Server) readHello(conn *websocket.Conn) (ClientHello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return ClientHello{}, fmt.Errorf("error reading hello: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientHello{}, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if msg.Type != TypeClientHello {
		return ClientHello{}, fmt.Errorf("expected %s, got %s", TypeClientHello, msg.Type)
	}

	var hello ClientHello
	if err := json.Unmarshal(msg.Payload, &hello); err != nil {
		return ClientHello{}, fmt.Errorf("error unmarshaling client hello: %w", err)
	}
	if hello.ClientID == "" {
		return ClientHello{}, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return ClientHello{}, errors.New("client hello missing name")
	}
	return hello, nil
}

// handleFrame forwards one binary frame of words
func (s *Server) handleFrame(c *client, data []byte) {
	words, err := DecodeWords(data)
	if err != nil {
		s.dropped.Add(1)
		s.log.Debug("dropping frame", zap.String("client", c.Name), zap.Error(err))
		return
	}
	s.frames.Add(1)
	s.send(words)
}

// handleText processes JSON control messages; it reports whether the
// client said goodbye
func (s *Server) handleText(c *client, data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Debug("error unmarshaling message", zap.String("client", c.Name), zap.Error(err))
		return false
	}

	switch msg.Type {
	case TypeClientGoodbye:
		return true
	default:
		s.log.Debug("ignoring message", zap.String("client", c.Name), zap.String("type", msg.Type))
		return false
	}
}

func (s *Server) send(words []uint32) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for _, w := range words {
		s.sender.SendDirectData(w)
	}
	s.words.Add(uint64(len(words)))
}

// pingLoop keeps idle connections alive
func (s *Server) pingLoop(c *client, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// closeClients closes every client connection so handlers return
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		c.writeMu.Lock()
		_ = c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.Conn.Close()
	}
}

func (c *client) writeJSON(msgType string, payload any) error {
	data, err := EncodeMessage(msgType, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

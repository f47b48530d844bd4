// ABOUTME: Bridge wire protocol
// ABOUTME: JSON handshake messages and binary frames of packed MIDI words
package bridge

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the bridge protocol version
const ProtocolVersion = 1

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientGoodbye = "client/goodbye"
	TypeServerHello   = "server/hello"
	TypeServerError   = "server/error"
)

// Message is the JSON envelope for text frames
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientHello introduces a client
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello answers a client hello
type ServerHello struct {
	ServerID     string `json:"server_id"`
	Name         string `json:"name"`
	Version      int    `json:"version"`
	Product      string `json:"product"`
	Manufacturer string `json:"manufacturer"`
	DriverActive bool   `json:"driver_active"`
}

// ServerError reports a rejected handshake
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrFrameLength is returned for binary frames that are not a whole number of words
var ErrFrameLength = errors.New("bridge: frame length is not a multiple of 4")

// EncodeMessage wraps payload in a typed envelope
func EncodeMessage(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}

// EncodeWords packs words little-endian into a binary frame
func EncodeWords(words []uint32) []byte {
	frame := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(frame[4*i:], w)
	}
	return frame
}

// DecodeWords unpacks a binary frame
func DecodeWords(frame []byte) ([]uint32, error) {
	if len(frame)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameLength, len(frame))
	}
	words := make([]uint32, len(frame)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(frame[4*i:])
	}
	return words, nil
}

// Package server exposes the VAD engine over the network: a WebSocket
// streaming endpoint speaking the typed event protocol, an HTTP batch
// endpoint, and the operational surface (health, metrics).
package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voicebridge/vad-engine/pkg/events"
)

// Transport abstracts the event delivery channel to one client.
// Implementations must be safe for concurrent SendEvent calls: session
// pipelines and silence timers emit from their own goroutines.
type Transport interface {
	// SendEvent sends a server event to the client.
	SendEvent(event events.ServerEvent) error

	// Close closes the transport connection.
	Close() error
}

// WebSocketTransport wraps a WebSocket connection for protocol events.
type WebSocketTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewWebSocketTransport creates a new WebSocket transport.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{
		conn: conn,
	}
}

// SendEvent sends a server event via WebSocket. Sending on a closed
// transport is a silent no-op: sessions outlive connections and their
// events simply stop being delivered.
func (t *WebSocketTransport) SendEvent(event events.ServerEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the WebSocket connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.conn.Close()
}

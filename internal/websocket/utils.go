package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeConn serializes writes to a WebSocket connection. The proctor
// stream has several writers (reader loop replies, coordinator pushes,
// snapshot timer) and gorilla/websocket allows only one concurrent writer.
type SafeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSafeConn wraps a WebSocket connection for concurrent use.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteTyped sends a strongly-typed payload over the WebSocket.
func (s *SafeConn) WriteTyped(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (s *SafeConn) WriteError(errMsg string) error {
	return s.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline; a silent client is eventually disconnected.
func (s *SafeConn) ReadJSON(v interface{}) error {
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return s.conn.ReadJSON(v)
}

// Close closes the underlying connection.
func (s *SafeConn) Close() error {
	return s.conn.Close()
}

package lib

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ThreadSafeWebSocket wraps a websocket.Conn and allows many readers and writers to
// read/write the conn from goroutines without having to track safe access.
// This comes with the caveat that all writes block eachother, and similarly for reads.
// See https://pkg.go.dev/github.com/gorilla/websocket?utm_source=godoc#hdr-Concurrency.
type ThreadSafeWebSocket struct {
	c            *websocket.Conn
	writeMu      *sync.Mutex
	readMu       *sync.Mutex
	writeTimeout time.Duration
}

// NewThreadSafeWebSocket wraps c. A zero writeTimeout means writes never time out.
func NewThreadSafeWebSocket(c *websocket.Conn, writeTimeout time.Duration) ThreadSafeWebSocket {
	return ThreadSafeWebSocket{c, &sync.Mutex{}, &sync.Mutex{}, writeTimeout}
}

func (s ThreadSafeWebSocket) ReadMessage() (int, []byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	return s.c.ReadMessage()
}

func (s ThreadSafeWebSocket) WriteMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.c.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.c.WriteMessage(messageType, data)
}

// WriteJSON marshals v and sends it as a single text frame.
func (s ThreadSafeWebSocket) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteMessage(websocket.TextMessage, b)
}

// Close sends a normal closure frame, best effort, then closes the underlying conn.
func (s ThreadSafeWebSocket) Close() error {
	s.writeMu.Lock()
	_ = s.c.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()
	return s.c.Close()
}

// Package stream pkg/stream/websocket.go
package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetward/fleetward/pkg/models"
)

const writeWait = 5 * time.Second

// WSSink adapts a websocket connection into a hub Sink. Writes are
// serialized; gorilla connections do not allow concurrent writers.
type WSSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWSSink wraps an upgraded websocket connection.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

// Push writes the sample as a JSON message. An error means the session is
// dead and the hub should drop it.
func (w *WSSink) Push(sample *models.TelemetrySample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return w.conn.WriteJSON(sample)
}

// Close closes the underlying connection.
func (w *WSSink) Close() error {
	return w.conn.Close()
}

// pkg/api/ws.go

package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fleetward/fleetward/pkg/cache"
	"github.com/fleetward/fleetward/pkg/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard clients connect cross-origin; auth is out of band.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamTelemetry upgrades the connection and subscribes it to the
// vehicle's live feed. The last cached sample is replayed first so a new
// dashboard does not start blank.
func (s *APIServer) streamTelemetry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vehicleID := vars["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading websocket for %s: %v", vehicleID, err)
		return
	}

	sink := stream.NewWSSink(conn)

	if !s.hub.Subscribe(vehicleID, sink) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many sessions for vehicle")
		if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
			log.Printf("Error writing close frame for %s: %v", vehicleID, err)
		}

		if err := sink.Close(); err != nil {
			log.Printf("Error closing websocket for %s: %v", vehicleID, err)
		}

		return
	}

	if s.latest != nil {
		if sample, err := s.latest.GetLatest(r.Context(), vehicleID); err == nil {
			if err := sink.Push(sample); err != nil {
				log.Printf("Error replaying cached sample for %s: %v", vehicleID, err)
			}
		} else if !errors.Is(err, cache.ErrNoSample) {
			log.Printf("Error fetching cached sample for %s: %v", vehicleID, err)
		}
	}

	// Hold the reader open to observe the peer closing. Pushes happen on
	// the hub's broadcast path.
	go func() {
		defer func() {
			s.hub.Unsubscribe(vehicleID, sink)

			if err := sink.Close(); err != nil {
				log.Printf("Error closing websocket for %s: %v", vehicleID, err)
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

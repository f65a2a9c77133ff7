// Package stream fans incoming telemetry out to live observation sessions.
package stream

import (
	"log"
	"sync"

	"github.com/fleetward/fleetward/pkg/models"
)

// Hub maintains the per-vehicle subscriber sets. Subscribe/unsubscribe are
// safe against a concurrent broadcast; a broadcast iterates a snapshot so
// removal mid-delivery cannot corrupt the set.
type Hub struct {
	mu            sync.RWMutex
	subscribers   map[string]map[Sink]bool // vehicleID -> set of sinks
	maxPerVehicle int
}

// NewHub creates a Hub. maxPerVehicle bounds concurrent sessions per
// vehicle; zero means the default of 10.
func NewHub(maxPerVehicle int) *Hub {
	if maxPerVehicle <= 0 {
		maxPerVehicle = 10
	}

	return &Hub{
		subscribers:   make(map[string]map[Sink]bool),
		maxPerVehicle: maxPerVehicle,
	}
}

// Subscribe registers a sink for a vehicle's telemetry. It reports false
// when the vehicle is already at its session cap, in which case the sink
// is not registered and the caller must close its session.
func (h *Hub) Subscribe(vehicleID string, sink Sink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.subscribers[vehicleID]; !exists {
		h.subscribers[vehicleID] = make(map[Sink]bool)
	}

	if len(h.subscribers[vehicleID]) >= h.maxPerVehicle {
		log.Printf("Max subscribers reached for vehicle %s", vehicleID)
		return false
	}

	h.subscribers[vehicleID][sink] = true

	return true
}

// Unsubscribe removes a sink. Removing an unknown sink is a no-op.
func (h *Hub) Unsubscribe(vehicleID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sinks, exists := h.subscribers[vehicleID]; exists {
		delete(sinks, sink)

		if len(sinks) == 0 {
			delete(h.subscribers, vehicleID)
		}
	}
}

// SubscriberCount reports the live sessions for a vehicle.
func (h *Hub) SubscriberCount(vehicleID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[vehicleID])
}

// Broadcast pushes the sample to every current subscriber for its vehicle.
// A failing sink is dropped; delivery to the others continues.
func (h *Hub) Broadcast(sample *models.TelemetrySample) {
	h.mu.RLock()

	sinks := make([]Sink, 0, len(h.subscribers[sample.VehicleID]))
	for sink := range h.subscribers[sample.VehicleID] {
		sinks = append(sinks, sink)
	}

	h.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Push(sample); err != nil {
			log.Printf("dropping subscriber for vehicle %s: %v", sample.VehicleID, err)
			h.Unsubscribe(sample.VehicleID, sink)
		}
	}
}

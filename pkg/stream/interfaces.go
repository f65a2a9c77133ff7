// Package stream pkg/stream/interfaces.go
package stream

import "github.com/fleetward/fleetward/pkg/models"

//go:generate mockgen -destination=mock_stream.go -package=stream github.com/fleetward/fleetward/pkg/stream Sink

// Sink receives telemetry pushed by the hub. A Push error marks the sink
// dead and removes it from the vehicle's subscriber set.
type Sink interface {
	Push(sample *models.TelemetrySample) error
}

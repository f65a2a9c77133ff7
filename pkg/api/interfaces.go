package api

import (
	"github.com/fleetward/fleetward/pkg/models"
)

//go:generate mockgen -destination=mock_api_server.go -package=api github.com/fleetward/fleetward/pkg/api Service,Ingestor

// Service represents the API server functionality.
type Service interface {
	Start(addr string) error
}

// Ingestor accepts raw telemetry samples for asynchronous processing.
type Ingestor interface {
	Ingest(sample *models.TelemetrySample) error
}

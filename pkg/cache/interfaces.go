// Package cache pkg/cache/interfaces.go
package cache

import (
	"context"

	"github.com/fleetward/fleetward/pkg/models"
)

//go:generate mockgen -destination=mock_cache.go -package=cache github.com/fleetward/fleetward/pkg/cache LatestStore

// LatestStore is the latest-sample cache contract consumed by the API and
// the websocket subscribe path.
type LatestStore interface {
	SetLatest(ctx context.Context, sample *models.TelemetrySample) error
	GetLatest(ctx context.Context, vehicleID string) (*models.TelemetrySample, error)
}

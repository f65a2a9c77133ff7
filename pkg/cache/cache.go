// Package cache keeps the most recent telemetry per vehicle in redis so new
// observation sessions and the read API see current state without touching
// the pipeline.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetward/fleetward/pkg/models"
)

// ErrNoSample is returned when a vehicle has no cached telemetry.
var ErrNoSample = errors.New("no cached sample for vehicle")

const latestTTL = 60 * time.Second

// Config holds redis connection settings.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// TelemetryCache is the redis-backed latest-sample store.
type TelemetryCache struct {
	client *redis.Client
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*TelemetryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &TelemetryCache{client: client}, nil
}

// Close releases the connection pool.
func (c *TelemetryCache) Close() error {
	return c.client.Close()
}

func latestKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:latest", vehicleID)
}

// SetLatest stores a vehicle's most recent sample with a short TTL.
func (c *TelemetryCache) SetLatest(ctx context.Context, sample *models.TelemetrySample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	if err := c.client.Set(ctx, latestKey(sample.VehicleID), payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// GetLatest returns a vehicle's most recent sample, or ErrNoSample.
func (c *TelemetryCache) GetLatest(ctx context.Context, vehicleID string) (*models.TelemetrySample, error) {
	val, err := c.client.Get(ctx, latestKey(vehicleID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSample
	}

	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sample models.TelemetrySample
	if err := json.Unmarshal([]byte(val), &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached sample: %w", err)
	}

	return &sample, nil
}

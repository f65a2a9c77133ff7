// cmd/server/config.go

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetward/fleetward/pkg/cache"
	"github.com/fleetward/fleetward/pkg/models"
	"github.com/fleetward/fleetward/pkg/notify"
	"github.com/fleetward/fleetward/pkg/pipeline"
)

var (
	errMissingListenAddr = errors.New("listen_addr is required")
	errMissingGrpcAddr   = errors.New("grpc_addr is required")
	errMissingDBPath     = errors.New("db_path is required")
)

type Config struct {
	ListenAddr string `json:"listen_addr"`
	GrpcAddr   string `json:"grpc_addr"`
	DBPath     string `json:"db_path"`

	// Retention bounds how long old notifications, resolved alerts, and
	// unclaimed past slots are kept before CleanOldData removes them.
	// Bookings are never deleted.
	Retention time.Duration `json:"retention"`

	// SeedDays is how many days ahead slot inventory is generated at boot.
	SeedDays int `json:"seed_days"`

	MaxStreamsPerVehicle int `json:"max_streams_per_vehicle"`

	Redis   cache.Config          `json:"redis"`
	Gateway notify.GatewayConfig  `json:"gateway"`
	Engine  pipeline.EngineConfig `json:"engine"`

	Centres []models.ServiceCentre `json:"centres,omitempty"`
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config

	aux := &struct {
		Retention string `json:"retention"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Retention != "" {
		d, err := time.ParseDuration(aux.Retention)
		if err != nil {
			return fmt.Errorf("invalid retention format: %w", err)
		}

		c.Retention = d
	}

	return nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errMissingListenAddr
	}

	if c.GrpcAddr == "" {
		return errMissingGrpcAddr
	}

	if c.DBPath == "" {
		return errMissingDBPath
	}

	return nil
}

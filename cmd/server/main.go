// cmd/server/main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/fleetward/fleetward/pkg/api"
	"github.com/fleetward/fleetward/pkg/booking"
	"github.com/fleetward/fleetward/pkg/cache"
	"github.com/fleetward/fleetward/pkg/config"
	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/detector"
	"github.com/fleetward/fleetward/pkg/diagnosis"
	"github.com/fleetward/fleetward/pkg/lifecycle"
	"github.com/fleetward/fleetward/pkg/notify"
	"github.com/fleetward/fleetward/pkg/pipeline"
	"github.com/fleetward/fleetward/pkg/scheduler"
	"github.com/fleetward/fleetward/pkg/stream"
)

const (
	defaultSeedDays      = 7
	retentionSweepPeriod = time.Hour
)

func main() {
	configPath := flag.String("config", "/etc/fleetward/server.json", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	var cfg Config
	if err := config.LoadAndValidate(configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	var latest cache.LatestStore

	if cfg.Redis.Addr != "" {
		tc, err := cache.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			if err := tc.Close(); err != nil {
				log.Printf("Error closing telemetry cache: %v", err)
			}
		}()

		latest = tc
	} else {
		log.Printf("No redis address configured, latest-telemetry cache disabled")
	}

	allocator := scheduler.New(store, nil)

	if err := seedCentres(store, allocator, &cfg); err != nil {
		return fmt.Errorf("failed to seed service centres: %w", err)
	}

	hub := stream.NewHub(cfg.MaxStreamsPerVehicle)
	dispatcher := notify.New(store, notify.NewHTTPGateway(cfg.Gateway), nil)
	orchestrator := pipeline.NewOrchestrator(
		store, detector.New(), diagnosis.New(), allocator, dispatcher, nil)
	engine := pipeline.NewEngine(orchestrator, hub, latest, cfg.Engine)

	manager := booking.New(store, nil, nil)
	apiServer := api.NewAPIServer(store, engine, allocator, manager, latest, hub)

	go func() {
		log.Printf("Starting HTTP API on %s", cfg.ListenAddr)

		if err := apiServer.Start(cfg.ListenAddr); err != nil {
			log.Fatalf("HTTP API failed: %v", err)
		}
	}()

	if cfg.Retention > 0 {
		go retentionSweep(ctx, store, cfg.Retention)
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:        cfg.GrpcAddr,
		ServiceName:       "fleetward-server",
		Service:           engine,
		EnableHealthCheck: true,
	})
}

// seedCentres registers configured centres and generates their slot
// inventory for the seed window. Days that already have slot units are
// left untouched, so restarts do not duplicate inventory.
func seedCentres(store db.Service, allocator *scheduler.Allocator, cfg *Config) error {
	seedDays := cfg.SeedDays
	if seedDays <= 0 {
		seedDays = defaultSeedDays
	}

	now := time.Now()

	for i := range cfg.Centres {
		centre := &cfg.Centres[i]

		if _, err := store.GetServiceCentre(centre.ID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return err
			}

			if err := store.CreateServiceCentre(centre); err != nil {
				return err
			}

			log.Printf("Registered service centre %s (%s)", centre.ID, centre.Name)
		}

		for d := 0; d < seedDays; d++ {
			date := now.AddDate(0, 0, d)
			dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

			existing, err := store.CountSlots(centre.ID, dayStart, dayStart.Add(24*time.Hour))
			if err != nil {
				return err
			}

			if existing > 0 {
				continue
			}

			created, err := allocator.SeedSlots(centre, date)
			if err != nil {
				return err
			}

			if created > 0 {
				log.Printf("Seeded %d slot units for centre %s on %s",
					created, centre.ID, dayStart.Format("2006-01-02"))
			}
		}
	}

	return nil
}

func retentionSweep(ctx context.Context, store db.Service, retention time.Duration) {
	ticker := time.NewTicker(retentionSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.CleanOldData(retention); err != nil {
				log.Printf("Error cleaning old data: %v", err)
			}
		}
	}
}

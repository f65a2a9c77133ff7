// Package pipeline pkg/pipeline/ingest.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetward/fleetward/pkg/cache"
	"github.com/fleetward/fleetward/pkg/models"
	"github.com/fleetward/fleetward/pkg/stream"
)

const (
	defaultShards       = 4
	defaultQueueSize    = 256
	defaultEventTimeout = 30 * time.Second
)

// EngineConfig sizes the ingest workers.
type EngineConfig struct {
	Shards       int           `json:"shards"`
	QueueSize    int           `json:"queue_size"`
	EventTimeout time.Duration `json:"event_timeout"`
}

func (c *EngineConfig) UnmarshalJSON(data []byte) error {
	type Alias EngineConfig

	aux := &struct {
		EventTimeout string `json:"event_timeout"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.EventTimeout != "" {
		d, err := time.ParseDuration(aux.EventTimeout)
		if err != nil {
			return fmt.Errorf("invalid event_timeout format: %w", err)
		}

		c.EventTimeout = d
	}

	return nil
}

// Engine accepts telemetry, fans it out immediately, and feeds the
// orchestrator through per-shard queues. Samples for one vehicle always
// land on the same shard, so they are processed in arrival order; vehicles
// on different shards proceed independently.
type Engine struct {
	orchestrator *Orchestrator
	hub          *stream.Hub
	latest       cache.LatestStore
	cfg          EngineConfig

	shards  []chan models.TelemetrySample
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	dropped int64
}

// NewEngine creates the ingest engine. latest may be nil when no cache is
// configured.
func NewEngine(orchestrator *Orchestrator, hub *stream.Hub, latest cache.LatestStore, cfg EngineConfig) *Engine {
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = defaultEventTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		orchestrator: orchestrator,
		hub:          hub,
		latest:       latest,
		cfg:          cfg,
		shards:       make([]chan models.TelemetrySample, cfg.Shards),
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := range e.shards {
		e.shards[i] = make(chan models.TelemetrySample, cfg.QueueSize)
	}

	return e
}

// Start launches one worker per shard.
func (e *Engine) Start(context.Context) error {
	for i := range e.shards {
		e.wg.Add(1)
		go e.worker(i)
	}

	return nil
}

// Stop drains nothing; queued samples past the deadline are abandoned.
func (e *Engine) Stop(ctx context.Context) error {
	e.cancel()

	done := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest validates and queues one sample. Fan-out and the latest-sample
// cache update happen here, on every sample, regardless of what the
// pipeline later decides — and regardless of how busy the pipeline is.
func (e *Engine) Ingest(sample *models.TelemetrySample) error {
	if err := sample.Validate(); err != nil {
		return err
	}

	e.hub.Broadcast(sample)

	if e.latest != nil {
		if err := e.latest.SetLatest(e.ctx, sample); err != nil {
			log.Printf("latest-sample cache update failed for %s: %v", sample.VehicleID, err)
		}
	}

	shard := e.shardFor(sample.VehicleID)

	select {
	case e.shards[shard] <- *sample:
	default:
		atomic.AddInt64(&e.dropped, 1)
		log.Printf("ingest queue full, dropping sample for vehicle %s", sample.VehicleID)
	}

	return nil
}

// Dropped reports how many samples were shed under load.
func (e *Engine) Dropped() int64 {
	return atomic.LoadInt64(&e.dropped)
}

func (e *Engine) shardFor(vehicleID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(vehicleID))

	return int(h.Sum32() % uint32(len(e.shards)))
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			log.Printf("ingest worker %d stopped", id)
			return
		case sample := <-e.shards[id]:
			e.runOne(&sample)
		}
	}
}

// runOne gives each event a deadline so a stalled collaborator abandons the
// run instead of blocking the shard forever.
func (e *Engine) runOne(sample *models.TelemetrySample) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.EventTimeout)
	defer cancel()

	ec := e.orchestrator.ProcessEvent(ctx, NewEventContext(sample))

	if ec.Outcome == OutcomeError || ec.Outcome == OutcomeAbandoned {
		log.Printf("pipeline run %s for vehicle %s ended %s: %s",
			ec.TraceID, ec.VehicleID, ec.Outcome, ec.Err)
	}
}

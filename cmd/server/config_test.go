package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/fleetward/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"listen_addr": ":8090",
		"grpc_addr": ":50052",
		"db_path": "/tmp/fleetward.db",
		"retention": "168h",
		"seed_days": 3,
		"redis": {"addr": "localhost:6379"},
		"gateway": {
			"enabled": true,
			"voice_url": "https://gateway.example.com/voice",
			"text_url": "https://gateway.example.com/text",
			"cooldown": "5m"
		},
		"engine": {"shards": 8, "queue_size": 512, "event_timeout": "45s"},
		"centres": [{
			"id": "SC-001",
			"name": "Downtown Service",
			"max_capacity": 3,
			"working_hours": {"start": "09:00", "end": "18:00"},
			"working_days": ["Monday", "Tuesday"],
			"slot_duration_minutes": 60
		}]
	}`)

	var cfg Config
	require.NoError(t, config.LoadAndValidate(path, &cfg))

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 168*time.Hour, cfg.Retention)
	assert.Equal(t, 3, cfg.SeedDays)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Gateway.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Gateway.Cooldown)
	assert.Equal(t, 8, cfg.Engine.Shards)
	assert.Equal(t, 45*time.Second, cfg.Engine.EventTimeout)
	require.Len(t, cfg.Centres, 1)
	assert.Equal(t, 3, cfg.Centres[0].MaxCapacity)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing listen_addr", content: `{"grpc_addr": ":50052", "db_path": "/tmp/x.db"}`},
		{name: "missing grpc_addr", content: `{"listen_addr": ":8090", "db_path": "/tmp/x.db"}`},
		{name: "missing db_path", content: `{"listen_addr": ":8090", "grpc_addr": ":50052"}`},
		{name: "bad retention", content: `{"listen_addr": ":8090", "grpc_addr": ":50052", "db_path": "/tmp/x.db", "retention": "soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			assert.Error(t, config.LoadAndValidate(writeConfig(t, tt.content), &cfg))
		})
	}
}

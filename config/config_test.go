package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "vpuppets.logs", cfg.NATS.Subject)
	assert.Equal(t, 15*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, time.Second, cfg.Scan.PollInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Replay.Tick)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpuppets.yaml")
	body := "listen: \":9090\"\nscan:\n  timeout: 30s\nnats:\n  url: nats://localhost:4222\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("VPUPPETS_DB_PATH", "/tmp/fleet.db")
	t.Setenv("VPUPPETS_REPLAY_TICK", "100ms")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "/tmp/fleet.db", cfg.DBPath)
	assert.Equal(t, 100*time.Millisecond, cfg.Replay.Tick)
}

func TestValidate(t *testing.T) {
	base, err := Load(viper.New(), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty listen", func(c *Config) { c.Listen = " " }, "listen address is empty"},
		{"zero tick", func(c *Config) { c.Replay.Tick = 0 }, "replay.tick"},
		{"poll above timeout", func(c *Config) { c.Scan.PollInterval = time.Minute }, "exceeds scan.timeout"},
		{"nats without subject", func(c *Config) {
			c.NATS.URL = "nats://x:4222"
			c.NATS.Subject = ""
		}, "nats.subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.SpeedInterval)
	assert.Equal(t, int32(DefaultChunkSize), cfg.ChunkSize)
	assert.Positive(t, cfg.MaxConcurrentTransfers)
	assert.Zero(t, cfg.BandwidthLimit)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero speed interval", func(c *Config) { c.SpeedInterval = 0 }},
		{"no workers", func(c *Config) { c.MaxConcurrentTransfers = 0 }},
		{"no buffer", func(c *Config) { c.BufferSize = 0 }},
		{"chunk too small", func(c *Config) { c.ChunkSize = MinChunkSize - 1 }},
		{"chunk too large", func(c *Config) { c.ChunkSize = MaxChunkSize + 1 }},
		{"negative timeout", func(c *Config) { c.FetchTimeout = -time.Second }},
		{"negative bandwidth", func(c *Config) { c.BandwidthLimit = -1 }},
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"no temp dir", func(c *Config) { c.TempDir = "" }},
		{"no torrent cap", func(c *Config) { c.MaxTorrentFileSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
		})
	}
}

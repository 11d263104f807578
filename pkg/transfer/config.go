package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the settings shared by every transfer kind
type Config struct {
	// Rate sampling
	SpeedInterval time.Duration `json:"speed_interval"`

	// Concurrency limits
	MaxConcurrentTransfers int `json:"max_concurrent_transfers"`

	// I/O settings
	BufferSize     int           `json:"buffer_size"`
	ChunkSize      int32         `json:"chunk_size"`
	FetchTimeout   time.Duration `json:"fetch_timeout"`
	BandwidthLimit int64         `json:"bandwidth_limit"` // bytes per second, 0 = unlimited

	// Locations
	DataDir string `json:"data_dir"`
	TempDir string `json:"temp_dir"`

	MaxTorrentFileSize int64 `json:"max_torrent_file_size"`
}

// Chunk size bounds for streaming files to peers
const (
	DefaultChunkSize = 64 * 1024
	MaxChunkSize     = 256 * 1024
	MinChunkSize     = 4 * 1024
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SpeedInterval:          DefaultSpeedInterval,
		MaxConcurrentTransfers: 8,
		BufferSize:             32 * 1024,
		ChunkSize:              DefaultChunkSize,
		FetchTimeout:           30 * time.Second,
		DataDir:                filepath.Join(os.TempDir(), "transferkit", "data"),
		TempDir:                filepath.Join(os.TempDir(), "transferkit", "tmp"),
		MaxTorrentFileSize:     10 * 1024 * 1024,
	}
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.SpeedInterval <= 0 {
		return fmt.Errorf("%w: speed_interval must be positive", ErrInvalidConfiguration)
	}
	if c.MaxConcurrentTransfers <= 0 {
		return fmt.Errorf("%w: max_concurrent_transfers must be positive", ErrInvalidConfiguration)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer_size must be positive", ErrInvalidConfiguration)
	}
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk_size must be between %d and %d", ErrInvalidConfiguration, MinChunkSize, MaxChunkSize)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch_timeout cannot be negative", ErrInvalidConfiguration)
	}
	if c.BandwidthLimit < 0 {
		return fmt.Errorf("%w: bandwidth_limit cannot be negative", ErrInvalidConfiguration)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfiguration)
	}
	if c.TempDir == "" {
		return fmt.Errorf("%w: temp_dir is required", ErrInvalidConfiguration)
	}
	if c.MaxTorrentFileSize <= 0 {
		return fmt.Errorf("%w: max_torrent_file_size must be positive", ErrInvalidConfiguration)
	}
	return nil
}

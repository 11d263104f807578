package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rescp17/transferkit/pkg/transfer"
)

const envPrefix = "TRANSFERKIT_"

// Config is the process level configuration read from the environment
type Config struct {
	HTTPAddr       string
	DataDir        string
	TempDir        string
	SharedDir      string
	LogLevel       string
	LogFormat      string
	MaxConcurrent  int
	BandwidthLimit int64 // bytes per second, 0 = unlimited
	FFmpegPath     string
	UploadSlots    int
	PeerRPS        float64 // 0 = unlimited
	PeerName       string
	MetricsEvery   time.Duration
}

func LoadConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	base := filepath.Join(home, "transferkit")
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DataDir:        getEnv("DATA_DIR", filepath.Join(base, "downloads")),
		TempDir:        getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "transferkit")),
		SharedDir:      getEnv("SHARED_DIR", filepath.Join(base, "shared")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		MaxConcurrent:  int(getEnvInt64("MAX_CONCURRENT", 4)),
		BandwidthLimit: getEnvInt64("BANDWIDTH_LIMIT", 0),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		UploadSlots:    int(getEnvInt64("UPLOAD_SLOTS", 4)),
		PeerRPS:        getEnvFloat("PEER_RPS", 0),
		PeerName:       getEnv("PEER_NAME", hostname()),
		MetricsEvery:   time.Duration(getEnvInt64("METRICS_INTERVAL_SECONDS", 5)) * time.Second,
	}
}

// TransferConfig derives the engine settings and validates them
func (c Config) TransferConfig() (*transfer.Config, error) {
	tc := transfer.DefaultConfig()
	if c.MaxConcurrent > 0 {
		tc.MaxConcurrentTransfers = c.MaxConcurrent
	}
	tc.BandwidthLimit = c.BandwidthLimit
	tc.DataDir = c.DataDir
	tc.TempDir = c.TempDir
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "transferkit"
	}
	return name
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// Package config loads Drishti settings from DRISHTI_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix.
const Prefix = "DRISHTI"

type Config struct {
	// Camera
	CameraID int `envconfig:"CAMERA_ID" default:"0"`

	// Pipeline
	TickInterval    time.Duration `envconfig:"TICK_INTERVAL" default:"66ms"`
	ProcessEvery    int           `envconfig:"PROCESS_EVERY" default:"1"`
	MinFaceSize     int           `envconfig:"MIN_FACE_SIZE" default:"40"`
	Threshold       float64       `envconfig:"THRESHOLD" default:"1.0"`
	MaxInFlight     int           `envconfig:"MAX_IN_FLIGHT" default:"2"`
	CacheCapacity   int           `envconfig:"CACHE_CAPACITY" default:"64"`
	CacheResetAfter int           `envconfig:"CACHE_RESET_AFTER" default:"30"`

	// Models
	EmbeddingDim   int     `envconfig:"EMBEDDING_DIM" default:"192"`
	PatchSize      int     `envconfig:"PATCH_SIZE" default:"112"`
	MinConfidence  float64 `envconfig:"MIN_CONFIDENCE" default:"0.5"`
	DetectorScript string  `envconfig:"DETECTOR_SCRIPT" default:"face_detector_service.py"`
	EmbedderScript string  `envconfig:"EMBEDDER_SCRIPT" default:"face_embedder_service.py"`
	Python         string  `envconfig:"PYTHON"`

	// Storage
	DataDir     string `envconfig:"DATA_DIR"`
	GalleryFile string `envconfig:"GALLERY_FILE" default:"faces.json"`
	DBFile      string `envconfig:"DB_FILE" default:"drishti.db"`

	// Hooks
	HookDir      string        `envconfig:"HOOK_DIR"`
	HookCooldown time.Duration `envconfig:"HOOK_COOLDOWN" default:"10s"`
	HookTimeout  time.Duration `envconfig:"HOOK_TIMEOUT" default:"5s"`

	// Server
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	StaticDir  string `envconfig:"STATIC_DIR"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads the configuration from the environment and fills in paths
// derived from the data directory.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the environment without deriving paths, so callers can apply
// overrides before calling Resolve.
func Read() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Resolve expands the data directory, derives unset paths from it and
// validates the result.
func (c *Config) Resolve() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".drishti")
	} else if rest, ok := strings.CutPrefix(c.DataDir, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, rest)
	}

	if c.HookDir == "" {
		c.HookDir = filepath.Join(c.DataDir, "hooks")
	}
	return c.Validate()
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("%s_TICK_INTERVAL must be positive", Prefix)
	case c.ProcessEvery < 1:
		return fmt.Errorf("%s_PROCESS_EVERY must be at least 1", Prefix)
	case c.Threshold <= 0:
		return fmt.Errorf("%s_THRESHOLD must be positive", Prefix)
	case c.EmbeddingDim <= 0:
		return fmt.Errorf("%s_EMBEDDING_DIM must be positive", Prefix)
	case c.PatchSize <= 0:
		return fmt.Errorf("%s_PATCH_SIZE must be positive", Prefix)
	case c.MaxInFlight < 1:
		return fmt.Errorf("%s_MAX_IN_FLIGHT must be at least 1", Prefix)
	}
	return nil
}

// GalleryPath returns the gallery file location.
func (c *Config) GalleryPath() string {
	return c.inDataDir(c.GalleryFile)
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return c.inDataDir(c.DBFile)
}

func (c *Config) inDataDir(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

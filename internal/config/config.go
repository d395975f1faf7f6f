// Package config holds runtime settings for detectoo.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/detectoo/detectoo/internal/intake"
)

// Config holds runtime configuration. Fields may be loaded from a JSON file
// and overridden by command-line flags.
type Config struct {
	// Analysis
	TileSize      int     `json:"tile_size"`
	Threshold     float64 `json:"threshold"`
	DelayMillis   int     `json:"delay_ms"`
	MaxUploadMB   int     `json:"max_upload_mb"`
	MaxMegapixels int     `json:"max_megapixels"`
	HeatmapLabels bool    `json:"heatmap_labels"`

	// Server
	Addr      string  `json:"addr"`
	Port      int     `json:"port"`
	RateLimit float64 `json:"rate_limit"` // analyze requests per second
	RateBurst int     `json:"rate_burst"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogFile   string `json:"log_file"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		TileSize:      80,
		Threshold:     20,
		DelayMillis:   2000,
		MaxUploadMB:   25,
		MaxMegapixels: 40,
		HeatmapLabels: true,
		Addr:          "127.0.0.1",
		Port:          6143,
		RateLimit:     5,
		RateBurst:     10,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Validate clamps values to safe ranges.
func (c *Config) Validate() error {
	if c.TileSize <= 0 {
		c.TileSize = 80
	}
	if c.Threshold <= 0 {
		c.Threshold = 20
	}
	if c.DelayMillis < 0 {
		c.DelayMillis = 0
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 25
	}
	if c.MaxMegapixels <= 0 {
		c.MaxMegapixels = 40
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	switch c.LogFormat {
	case "text", "json":
	case "":
		c.LogFormat = "text"
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// Delay returns the analysis delay as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// UploadLimit returns the upload cap in bytes.
func (c *Config) UploadLimit() int64 {
	return int64(c.MaxUploadMB) << 20
}

// UploadLimits returns the byte and decoded pixel caps for uploads.
func (c *Config) UploadLimits() intake.Limits {
	return intake.Limits{
		Bytes:  c.UploadLimit(),
		Pixels: int64(c.MaxMegapixels) * 1_000_000,
	}
}

// Load reads configuration from the JSON file at path. A missing file
// yields the defaults. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Package config loads knockout settings. Values are layered: built-in
// defaults, then an optional YAML file, then KNOCKOUT_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "KNOCKOUT_"

type Config struct {
	Threshold     int     `yaml:"threshold"      env:"THRESHOLD"`
	Quality       float32 `yaml:"quality"        env:"QUALITY"`
	Lossless      bool    `yaml:"lossless"       env:"LOSSLESS"`
	DurationMs    int     `yaml:"duration_ms"    env:"DURATION_MS"`
	LoopCount     int     `yaml:"loop_count"     env:"LOOP_COUNT"`
	MaxWidth      int     `yaml:"max_width"      env:"MAX_WIDTH"`
	MaxHeight     int     `yaml:"max_height"     env:"MAX_HEIGHT"`
	PreserveAlpha bool    `yaml:"preserve_alpha" env:"PRESERVE_ALPHA"`
	Jobs          int     `yaml:"jobs"           env:"JOBS"`
	LogLevel      string  `yaml:"log_level"      env:"LOG_LEVEL"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Threshold:  240,
		Quality:    80,
		DurationMs: 30,
		LoopCount:  0,
		Jobs:       4,
		LogLevel:   "info",
	}
}

// Load reads path (skipped when empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ means the
// process environment.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Duration is the display time of every output frame.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationMs) * time.Millisecond
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Threshold < 0 || c.Threshold > 255 {
		errs = append(errs, fmt.Errorf("threshold %d is outside [0, 255]", c.Threshold))
	}
	if c.Quality < 0 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality %v is outside [0, 100]", c.Quality))
	}
	if c.DurationMs <= 0 {
		errs = append(errs, fmt.Errorf("frame duration must be positive, got %dms", c.DurationMs))
	}
	if c.LoopCount < 0 || c.LoopCount > 65535 {
		errs = append(errs, fmt.Errorf("loop count %d is outside [0, 65535]", c.LoopCount))
	}
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		errs = append(errs, fmt.Errorf("max size %dx%d must not be negative", c.MaxWidth, c.MaxHeight))
	}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	return errors.Join(errs...)
}

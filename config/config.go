// Package config loads vizctx settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/vizctx/pool"
	"github.com/gogpu/vizctx/quality"
	"github.com/gogpu/vizctx/render"
)

// Environment variables that override file values.
const (
	EnvBackend  = "VIZCTX_BACKEND"
	EnvLogLevel = "VIZCTX_LOG_LEVEL"
)

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("config: invalid")

// Config is the top-level configuration.
type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	Quality QualityConfig `yaml:"quality"`
	Render  RenderConfig  `yaml:"render"`
	Backend BackendConfig `yaml:"backend"`
	Catalog CatalogConfig `yaml:"catalog"`
	Log     LogConfig     `yaml:"log"`
}

// PoolConfig bounds the context pool.
type PoolConfig struct {
	MaxContexts   int     `yaml:"max_contexts"`
	MaxPixelRatio float64 `yaml:"max_pixel_ratio"`
}

// QualityConfig configures the adaptive quality controller.
type QualityConfig struct {
	// InitialTier is "low", "medium" or "high". Empty derives the tier from
	// the probed hardware.
	InitialTier    string `yaml:"initial_tier"`
	AutoAdjust     bool   `yaml:"auto_adjust"`
	DowngradeFPS   int    `yaml:"downgrade_fps"`
	UpgradeFPS     int    `yaml:"upgrade_fps"`
	CooldownFrames int    `yaml:"cooldown_frames"`
}

// RenderConfig configures the frame loop.
type RenderConfig struct {
	TargetFPS        int  `yaml:"target_fps"`
	MaxTasksPerFrame int  `yaml:"max_tasks_per_frame"`
	Overlay          bool `yaml:"overlay"`
}

// BackendConfig selects the graphics backend. An empty name picks the
// highest-priority backend that initializes.
type BackendConfig struct {
	Name string `yaml:"name"`
}

// CatalogConfig points at an optional design overrides file.
type CatalogConfig struct {
	Overrides string `yaml:"overrides"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxContexts:   pool.MaxContexts,
			MaxPixelRatio: pool.DefaultMaxPixelRatio,
		},
		Quality: QualityConfig{
			AutoAdjust:     true,
			DowngradeFPS:   quality.DefaultDowngradeFPS,
			UpgradeFPS:     quality.DefaultUpgradeFPS,
			CooldownFrames: quality.DefaultCooldownFrames,
		},
		Render: RenderConfig{
			TargetFPS:        60,
			MaxTasksPerFrame: render.DefaultMaxTasksPerFrame,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse decodes data over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if name := os.Getenv(EnvBackend); name != "" {
		c.Backend.Name = name
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Pool.MaxContexts < 1:
		return fmt.Errorf("%w: pool.max_contexts %d < 1", ErrInvalid, c.Pool.MaxContexts)
	case c.Pool.MaxPixelRatio < 1:
		return fmt.Errorf("%w: pool.max_pixel_ratio %g < 1", ErrInvalid, c.Pool.MaxPixelRatio)
	case c.Quality.DowngradeFPS < 1:
		return fmt.Errorf("%w: quality.downgrade_fps %d < 1", ErrInvalid, c.Quality.DowngradeFPS)
	case c.Quality.UpgradeFPS <= c.Quality.DowngradeFPS:
		return fmt.Errorf("%w: quality.upgrade_fps %d must exceed downgrade_fps %d",
			ErrInvalid, c.Quality.UpgradeFPS, c.Quality.DowngradeFPS)
	case c.Quality.CooldownFrames < 0:
		return fmt.Errorf("%w: quality.cooldown_frames %d < 0", ErrInvalid, c.Quality.CooldownFrames)
	case c.Render.TargetFPS < 1:
		return fmt.Errorf("%w: render.target_fps %d < 1", ErrInvalid, c.Render.TargetFPS)
	case c.Render.MaxTasksPerFrame < 1:
		return fmt.Errorf("%w: render.max_tasks_per_frame %d < 1", ErrInvalid, c.Render.MaxTasksPerFrame)
	}
	if c.Quality.InitialTier != "" {
		if _, err := quality.ParseTier(c.Quality.InitialTier); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// FrameInterval is the scheduler tick derived from Render.TargetFPS.
func (c *Config) FrameInterval() time.Duration {
	if c.Render.TargetFPS < 1 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Render.TargetFPS)
}

// PoolOptions converts the pool section into pool options.
func (c *Config) PoolOptions() []pool.Option {
	return []pool.Option{
		pool.WithCapacity(c.Pool.MaxContexts),
		pool.WithMaxPixelRatio(c.Pool.MaxPixelRatio),
	}
}

// LoopOptions converts the quality and render sections into loop options.
func (c *Config) LoopOptions() []render.Option {
	opts := []render.Option{
		render.WithMaxTasks(c.Render.MaxTasksPerFrame),
		render.WithQualityOptions(
			quality.WithThresholds(c.Quality.DowngradeFPS, c.Quality.UpgradeFPS),
			quality.WithCooldown(c.Quality.CooldownFrames),
			quality.WithAutoAdjust(c.Quality.AutoAdjust),
		),
	}
	if t, err := quality.ParseTier(c.Quality.InitialTier); err == nil {
		opts = append(opts, render.WithInitialTier(t))
	}
	return opts
}

// SlogLevel parses Level. Empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := l.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

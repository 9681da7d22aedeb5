package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/vizctx/pool"
	"github.com/gogpu/vizctx/quality"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Pool.MaxContexts != pool.MaxContexts {
		t.Errorf("MaxContexts = %d, want %d", cfg.Pool.MaxContexts, pool.MaxContexts)
	}
	if cfg.FrameInterval() != time.Second/60 {
		t.Errorf("FrameInterval() = %v", cfg.FrameInterval())
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
pool:
  max_contexts: 2
quality:
  initial_tier: medium
  auto_adjust: false
  cooldown_frames: 30
render:
  target_fps: 30
  overlay: true
backend:
  name: software
catalog:
  overrides: designs.yaml
log:
  level: debug
  format: json
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Default()
	want.Pool.MaxContexts = 2
	want.Quality.InitialTier = "medium"
	want.Quality.AutoAdjust = false
	want.Quality.CooldownFrames = 30
	want.Render.TargetFPS = 30
	want.Render.Overlay = true
	want.Backend.Name = "software"
	want.Catalog.Overrides = "designs.yaml"
	want.Log = LogConfig{Level: "debug", Format: "json"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.FrameInterval(); got != time.Second/30 {
		t.Errorf("FrameInterval() = %v", got)
	}
	if n := len(cfg.LoopOptions()); n != 3 {
		t.Errorf("LoopOptions() has %d options, want 3 with an initial tier", n)
	}
	if n := len(cfg.PoolOptions()); n != 2 {
		t.Errorf("PoolOptions() has %d options", n)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"max contexts", func(c *Config) { c.Pool.MaxContexts = 0 }, "pool.max_contexts"},
		{"pixel ratio", func(c *Config) { c.Pool.MaxPixelRatio = 0.5 }, "pool.max_pixel_ratio"},
		{"downgrade", func(c *Config) { c.Quality.DowngradeFPS = 0 }, "quality.downgrade_fps"},
		{"thresholds inverted", func(c *Config) { c.Quality.UpgradeFPS = 20 }, "quality.upgrade_fps"},
		{"cooldown", func(c *Config) { c.Quality.CooldownFrames = -1 }, "quality.cooldown_frames"},
		{"target fps", func(c *Config) { c.Render.TargetFPS = 0 }, "render.target_fps"},
		{"tasks", func(c *Config) { c.Render.MaxTasksPerFrame = 0 }, "render.max_tasks_per_frame"},
		{"tier", func(c *Config) { c.Quality.InitialTier = "ultra" }, "ultra"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.field)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("pool: [")); err == nil {
		t.Error("Parse(malformed) returned nil error")
	}
	if _, err := Parse([]byte("pool:\n  max_contexts: -3\n")); !errors.Is(err, ErrInvalid) {
		t.Errorf("Parse(invalid) = %v, want ErrInvalid", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(missing) mismatch (-want +got):\n%s", diff)
	}

	path := filepath.Join(dir, "vizctx.yaml")
	if err := os.WriteFile(path, []byte("render:\n  max_tasks_per_frame: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Render.MaxTasksPerFrame != 9 {
		t.Errorf("MaxTasksPerFrame = %d, want 9", cfg.Render.MaxTasksPerFrame)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvBackend, "wgpu")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Parse([]byte("backend:\n  name: software\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Backend.Name != "wgpu" {
		t.Errorf("Backend.Name = %q, want wgpu", cfg.Backend.Name)
	}
	if level, _ := cfg.Log.SlogLevel(); level != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, want WARN", level)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	l.Info("hidden")
	l.Warn("shown", "tier", quality.Low.String())

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"tier":"low"`) {
		t.Errorf("unexpected output %q", out)
	}

	if level, err := (LogConfig{}).SlogLevel(); err != nil || level != slog.LevelInfo {
		t.Errorf("empty SlogLevel() = %v, %v", level, err)
	}
}

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/landmetrics/eftrich/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeConfig(t, `
patterns = ["rasters/*.nc"]
radii = [300.0, 1000.0]
workspace = "out"
workers = 4
force = true
cache = "redis"
redis_addr = "localhost:6379"
`)

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if len(cfg.Patterns) != 1 || cfg.Patterns[0] != "rasters/*.nc" {
		t.Errorf("patterns = %v", cfg.Patterns)
	}
	if len(cfg.Radii) != 2 || cfg.Radii[0] != 300 || cfg.Radii[1] != 1000 {
		t.Errorf("radii = %v", cfg.Radii)
	}
	if cfg.Workspace != "out" || cfg.Workers != 4 || !cfg.Force {
		t.Errorf("workspace/workers/force = %q/%d/%v", cfg.Workspace, cfg.Workers, cfg.Force)
	}
	if cfg.Cache != "redis" || cfg.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %q addr = %q", cfg.Cache, cfg.RedisAddr)
	}
}

func TestLoadRunConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `radious = [300.0]`)
	_, err := loadRunConfig(path)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	_, err := loadRunConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestApplyConfigFlagsWin(t *testing.T) {
	c := New(os.Stderr, LogInfo)
	cmd := c.runCommand()
	// Simulate "--radius 50 --workspace cli-ws" given on the command line.
	if err := cmd.Flags().Set("radius", "50"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("workspace", "cli-ws"); err != nil {
		t.Fatal(err)
	}

	cfg := &runConfig{
		Patterns:  []string{"file.nc"},
		Radii:     []float64{300},
		Workspace: "file-ws",
		Workers:   8,
		Cache:     "none",
	}
	opts := &runOpts{workspace: "cli-ws", radii: []float64{50}, cacheKind: cacheFile}
	var patterns []string
	applyConfig(cmd, cfg, opts, &patterns)

	if len(patterns) != 1 || patterns[0] != "file.nc" {
		t.Errorf("patterns = %v, want from config", patterns)
	}
	if len(opts.radii) != 1 || opts.radii[0] != 50 {
		t.Errorf("radii = %v, flag should win", opts.radii)
	}
	if opts.workspace != "cli-ws" {
		t.Errorf("workspace = %q, flag should win", opts.workspace)
	}
	if opts.workers != 8 {
		t.Errorf("workers = %d, config should fill unset flag", opts.workers)
	}
	if opts.cacheKind != "none" {
		t.Errorf("cache = %q, config should fill unset flag", opts.cacheKind)
	}
}

func TestApplyConfigPatternsFromArgs(t *testing.T) {
	c := New(os.Stderr, LogInfo)
	cmd := c.runCommand()

	cfg := &runConfig{Patterns: []string{"config.nc"}}
	opts := &runOpts{workspace: "ws", cacheKind: cacheFile}
	patterns := []string{"cli.nc"}
	applyConfig(cmd, cfg, opts, &patterns)

	if len(patterns) != 1 || patterns[0] != "cli.nc" {
		t.Errorf("patterns = %v, command line should win", patterns)
	}
}

package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/landmetrics/eftrich/pkg/errors"
)

func TestRootCommandStructure(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	if root.Use != appName {
		t.Errorf("root Use = %q, want %q", root.Use, appName)
	}

	want := map[string]bool{"run": false, "graph": false, "cache": false, "completion": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestCacheDir(t *testing.T) {
	got := cacheDir("ws")
	want := filepath.Join("ws", ".cache")
	if got != want {
		t.Errorf("cacheDir = %q, want %q", got, want)
	}
}

func TestNewCacheUsesContextLogger(t *testing.T) {
	var buf strings.Builder
	ctx := withLogger(context.Background(), newLogger(&buf, LogDebug))

	if _, err := newCache(ctx, cacheNone, t.TempDir(), ""); err != nil {
		t.Fatalf("none backend: %v", err)
	}
	if !strings.Contains(buf.String(), "cache disabled") {
		t.Errorf("backend choice not logged:\n%s", buf.String())
	}
}

func TestNewCacheBackends(t *testing.T) {
	ctx := context.Background()
	ws := t.TempDir()

	if _, err := newCache(ctx, cacheFile, ws, ""); err != nil {
		t.Errorf("file backend: %v", err)
	}
	if _, err := newCache(ctx, "", ws, ""); err != nil {
		t.Errorf("default backend: %v", err)
	}
	if _, err := newCache(ctx, cacheNone, ws, ""); err != nil {
		t.Errorf("none backend: %v", err)
	}

	if _, err := newCache(ctx, cacheRedis, ws, ""); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("redis without addr: err = %v, want INVALID_CONFIG", err)
	}
	if _, err := newCache(ctx, "memcached", ws, ""); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("unknown backend: err = %v, want INVALID_CONFIG", err)
	}
}

func TestRunCommandRequiresInputs(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"run", "--radius", "300"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestRunCommandRejectsMissingPattern(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"run", filepath.Join(t.TempDir(), "*.nc"), "--radius", "300"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidPattern) {
		t.Errorf("err = %v, want INVALID_PATTERN", err)
	}
}

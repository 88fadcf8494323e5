// Package cli implements the eftrich command-line interface.
package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/landmetrics/eftrich/pkg/buildinfo"
	"github.com/landmetrics/eftrich/pkg/cache"
	"github.com/landmetrics/eftrich/pkg/errors"
	"github.com/landmetrics/eftrich/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "eftrich"

// Cache backend names accepted by --cache.
const (
	cacheFile  = "file"
	cacheRedis = "redis"
	cacheNone  = "none"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "eftrich counts habitat types reachable from each raster pixel",
		Long: `eftrich takes categorical raster layers (each pixel holds a habitat or
land-cover code) and computes, per pixel, how many distinct categories are
reachable within one or more search radii.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.runCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner backed by the requested cache.
func (c *CLI) newRunner(ctx context.Context, backend, workspace, redisAddr string) (*pipeline.Runner, error) {
	store, err := newCache(ctx, backend, workspace, redisAddr)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(store, c.Logger), nil
}

// newCache builds the fingerprint store for one run. The file backend lives
// under the workspace so clearing the workspace also clears the cache.
func newCache(ctx context.Context, backend, workspace, redisAddr string) (cache.Cache, error) {
	logger := loggerFromContext(ctx)
	switch backend {
	case cacheFile, "":
		logger.Debug("using file fingerprint cache", "dir", cacheDir(workspace))
		return cache.NewFileCache(cacheDir(workspace))
	case cacheRedis:
		if redisAddr == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "--cache redis requires --redis-addr")
		}
		logger.Debug("using redis fingerprint cache", "addr", redisAddr)
		return cache.NewRedisCache(ctx, redisAddr)
	case cacheNone:
		logger.Debug("fingerprint cache disabled")
		return cache.NewNullCache(), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig,
		"unknown cache backend %q (want file, redis, or none)", backend)
}

// cacheDir returns the fingerprint cache directory inside a workspace.
func cacheDir(workspace string) string {
	return filepath.Join(workspace, ".cache")
}

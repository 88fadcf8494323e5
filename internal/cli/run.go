package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/landmetrics/eftrich/pkg/errors"
	"github.com/landmetrics/eftrich/pkg/pipeline"
	"github.com/landmetrics/eftrich/pkg/taskgraph"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	radii     []float64
	force     bool
	workers   int
	workspace string
	config    string
	cacheKind string
	redisAddr string
	progress  bool
}

// runCommand creates the run command, the main entry point of the tool.
func (c *CLI) runCommand() *cobra.Command {
	opts := runOpts{workspace: pipeline.DefaultWorkspace, cacheKind: cacheFile}

	cmd := &cobra.Command{
		Use:   "run <pattern>...",
		Short: "Compute per-pixel category richness rasters",
		Long: `Compute, for each input raster, a per-pixel count of the distinct
category codes reachable within the given search radii.

Patterns are shell globs over raster files; radii are in each raster's
projected units (usually meters).

Examples:
  eftrich run landcover.nc --radius 300
  eftrich run 'rasters/*.nc' --radius 300 --radius 1000 --workspace out
  eftrich run --config run.toml --progress`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPipeline(cmd, args, &opts)
		},
	}

	cmd.Flags().Float64SliceVarP(&opts.radii, "radius", "r", nil, "search radius in projected units (repeatable)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "bypass the radius/raster-extent sanity check")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "worker pool size (0 = number of CPUs)")
	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", opts.workspace, "directory for intermediate and output rasters")
	cmd.Flags().StringVar(&opts.config, "config", "", "TOML run file (flags win over file values)")
	cmd.Flags().StringVar(&opts.cacheKind, "cache", opts.cacheKind, "fingerprint cache backend: file, redis, or none")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address for --cache redis (host:port)")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a live task table instead of log lines")

	return cmd
}

func (c *CLI) runPipeline(cmd *cobra.Command, patterns []string, opts *runOpts) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	if opts.config != "" {
		cfg, err := loadRunConfig(opts.config)
		if err != nil {
			return err
		}
		applyConfig(cmd, cfg, opts, &patterns)
	}
	if len(patterns) == 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			"no input rasters: pass at least one pattern or set patterns in --config")
	}

	inputs, err := pipeline.ExpandPatterns(patterns)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.cacheKind, opts.workspace, opts.redisAddr)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := pipeline.Options{
		Inputs:    inputs,
		Radii:     opts.radii,
		Force:     opts.force,
		Workers:   opts.workers,
		Workspace: opts.workspace,
		Logger:    c.Logger,
	}

	var res *pipeline.Result
	var runErr error
	if opts.progress {
		res, runErr = c.executeWithProgress(ctx, runner, popts)
	} else {
		res, runErr = runner.Execute(ctx, popts)
	}
	if res == nil {
		return runErr
	}

	c.printRunResult(res, len(inputs), opts)
	return runErr
}

// executeWithProgress runs the pipeline under a live bubbletea task table.
// Logging is muted while the table owns the terminal.
func (c *CLI) executeWithProgress(ctx context.Context, runner *pipeline.Runner, popts pipeline.Options) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	p := tea.NewProgram(newProgressModel(), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	popts.Hooks = progressHooks{p: p}
	popts.Logger = newLogger(discardWriter{}, LogInfo)

	return runUnderProgram(p, cancel, func() (*pipeline.Result, error) {
		return runner.Execute(ctx, popts)
	})
}

// runUnderProgram runs the pipeline in a goroutine while p owns the
// terminal. It always waits for the run to finish before returning: the
// run still holds the cache the caller is about to close. When the program
// exits early (interrupt, context cancellation) the run's context is
// cancelled so the wait cannot outlive the remaining in-flight tasks.
func runUnderProgram(p *tea.Program, cancel context.CancelFunc, run func() (*pipeline.Result, error)) (*pipeline.Result, error) {
	var res *pipeline.Result
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = run()
		p.Send(runDoneMsg{})
	}()
	_, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return res, err
	}
	return res, runErr
}

// printRunResult summarizes a finished run on stdout.
func (c *CLI) printRunResult(res *pipeline.Result, inputs int, opts *runOpts) {
	if len(res.Outputs) == inputs {
		printSuccess("Computed %d richness raster(s)", len(res.Outputs))
	} else {
		printWarning("Computed %d of %d richness raster(s)", len(res.Outputs), inputs)
	}
	for _, out := range res.Outputs {
		printFile(out.CountPath)
		printDetail("%d categories, %d valid cells, mean %.2f",
			len(out.Categories), out.Stats.ValidCells, out.Stats.Mean)
	}
	if res.StatsPath != "" {
		printInfo("Run statistics")
		printFile(res.StatsPath)
	}
	printDetail("%d tasks, %d reused, %s",
		res.Stats.Tasks, res.Stats.Reused, res.Stats.Duration.Round(time.Millisecond))
	if len(res.Outputs) > 0 {
		printNextStep("Inspect the task graph",
			fmt.Sprintf("%s graph <pattern> -r <radius> -w %s -o graph.svg", appName, opts.workspace))
	}
}

// discardWriter mutes the structured logger while the progress table runs.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// applyConfig fills in file values for every flag the user did not set on
// the command line.
func applyConfig(cmd *cobra.Command, cfg *runConfig, opts *runOpts, patterns *[]string) {
	if len(*patterns) == 0 {
		*patterns = cfg.Patterns
	}
	f := cmd.Flags()
	if !f.Changed("radius") && len(cfg.Radii) > 0 {
		opts.radii = cfg.Radii
	}
	if !f.Changed("workspace") && cfg.Workspace != "" {
		opts.workspace = cfg.Workspace
	}
	if !f.Changed("workers") && cfg.Workers != 0 {
		opts.workers = cfg.Workers
	}
	if !f.Changed("force") {
		opts.force = cfg.Force
	}
	if !f.Changed("cache") && cfg.Cache != "" {
		opts.cacheKind = cfg.Cache
	}
	if !f.Changed("redis-addr") && cfg.RedisAddr != "" {
		opts.redisAddr = cfg.RedisAddr
	}
}

// progressHooks forwards task lifecycle events into the bubbletea program.
type progressHooks struct {
	p *tea.Program
}

var _ taskgraph.Hooks = progressHooks{}

func (h progressHooks) OnTaskQueued(name string) {
	h.p.Send(taskMsg{name: name, state: taskQueued})
}

func (h progressHooks) OnTaskStart(name string) {
	h.p.Send(taskMsg{name: name, state: taskRunning})
}

func (h progressHooks) OnTaskDone(name string, cached bool, d time.Duration) {
	h.p.Send(taskMsg{name: name, state: taskDone, cached: cached, dur: d})
}

func (h progressHooks) OnTaskFailed(name string, err error) {
	h.p.Send(taskMsg{name: name, state: taskFailed, err: err})
}

func (h progressHooks) OnTaskSkipped(name string, err error) {
	h.p.Send(taskMsg{name: name, state: taskSkipped})
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodlie/autocache/internal/cacher"
	"github.com/rodlie/autocache/internal/config"
	"github.com/rodlie/autocache/internal/graph"
	"github.com/rodlie/autocache/internal/render"
	"github.com/rodlie/autocache/internal/store"
	"github.com/rodlie/autocache/internal/timecode"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Profile     string
	Duration    int
	FPS         int
	RenderDelay time.Duration
}

// NewRunCommand creates the run command: a cache simulation that drives
// the scheduler over a synthetic sequence until the cache converges.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate caching a sequence into a database",
		Long: `Run the scheduler against a synthetic sequence and persist the result.

The sequence has one parameter keyframed every two seconds, so consecutive
frames share content and the cache stores far fewer frames than the
sequence has. Stops when the cache has converged, or on Ctrl-C.

Example:
  autocache run --db ./cache.db --duration 20 --fps 24
  autocache run --db /tmp/cache.db --profile profile.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to cache database (required)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "path to scheduling profile YAML")
	cmd.Flags().IntVar(&opts.Duration, "duration", 10, "sequence length in seconds")
	cmd.Flags().IntVar(&opts.FPS, "fps", 24, "sequence frame rate")
	cmd.Flags().DurationVar(&opts.RenderDelay, "render-delay", 5*time.Millisecond, "simulated per-frame render time")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if opts.Duration < 1 || opts.FPS < 1 {
		return WrapExitError(ExitCommandError, "duration and fps must be positive", nil)
	}

	profile := config.Default()
	if opts.Profile != "" {
		var err error
		profile, err = config.Load(opts.Profile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
	}

	slog.Info("opening cache database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	duration := timecode.FromInt(int64(opts.Duration))
	timebase := timecode.NewRational(1, int64(opts.FPS))
	lg, output := demoSequence(int64(opts.Duration))

	pool := render.NewPool(profile.MaxConcurrentRenders,
		simRender(opts.RenderDelay), simRender(opts.RenderDelay), simRender(0))
	defer pool.Close()

	ac := cacher.New(pool, st, profile)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- ac.Run(ctx) }()

	ac.SetViewer(&cacher.Viewer{
		Graph:  lg,
		Output: output,
		Format: cacher.Format{
			Timebase:    timebase,
			Duration:    duration,
			AudioFormat: "s16le-48000-2",
		},
	})
	// Cache the whole sequence, not just the playhead window.
	ac.ForceCacheRange(timecode.NewRange(timecode.Rational{}, duration))

	fmt.Fprintln(cmd.OutOrStdout(), "Caching... press Ctrl-C to stop.")

	wantFrames := int64(opts.Duration * opts.FPS)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-ticker.C:
			stats, err := st.Stats()
			if err != nil {
				slog.Error("reading stats", "error", err)
				continue
			}
			slog.Debug("progress", "associations", stats.Associations, "frames", stats.Frames)
			if stats.Associations >= wantFrames {
				break poll
			}
		}
	}

	ac.WaitForVideoDownloadsToFinish()
	ac.Stop()
	if err := <-runDone; err != nil && err != context.Canceled {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	stats, err := st.Stats()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read final stats", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(stats)
	}
	return out.Success(fmt.Sprintf(
		"cached %d frame times as %d distinct frames (%d bytes), %d audio segments (%d bytes)",
		stats.Associations, stats.Frames, stats.FrameBytes, stats.AudioSegments, stats.AudioBytes,
	))
}

// demoSequence builds a one-node graph whose parameter is keyframed every
// two seconds. Frames inside a segment are content-identical, which is
// what makes the dedup visible in the final stats.
func demoSequence(seconds int64) (*graph.LiveGraph, graph.NodeID) {
	var frames []graph.Keyframe
	for s := int64(0); s < seconds; s += 2 {
		frames = append(frames, graph.Keyframe{
			Time:  timecode.FromInt(s),
			Value: graph.Int(s / 2),
		})
	}

	lg := graph.NewLiveGraph()
	lg.AddNode(&graph.Node{
		ID:     "seq",
		Kind:   "sequence",
		Values: map[string]graph.Value{"level": graph.NewKeyframed(frames...)},
	}, nil, nil)
	return lg, "seq"
}

// simRender produces deterministic synthetic media after a simulated
// render delay.
func simRender(delay time.Duration) render.Func {
	return func(ctx context.Context, req render.Request) (any, bool) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, false
			}
		}
		switch req.Media {
		case render.MediaAudio:
			return []byte("samples " + req.Range.String()), true
		default:
			return []byte("pixels " + req.Time.String()), true
		}
	}
}

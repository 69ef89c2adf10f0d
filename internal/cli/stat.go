package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rodlie/autocache/internal/store"
)

// StatOptions holds flags for the stat command.
type StatOptions struct {
	*RootOptions
	Database string
}

// NewStatCommand creates the stat command.
func NewStatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Show cache database contents",
		Long: `Summarize a cache database: distinct frames, frame-time associations,
and audio segments, with byte sizes.

Example:
  autocache stat --db ./cache.db
  autocache stat --db ./cache.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStat(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to cache database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStat(opts *StatOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read stats", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(stats)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "frames:         %d (%d bytes)\n", stats.Frames, stats.FrameBytes)
	fmt.Fprintf(cmd.OutOrStdout(), "associations:   %d\n", stats.Associations)
	fmt.Fprintf(cmd.OutOrStdout(), "audio segments: %d (%d bytes)\n", stats.AudioSegments, stats.AudioBytes)
	return nil
}

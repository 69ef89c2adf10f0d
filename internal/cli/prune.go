package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rodlie/autocache/internal/store"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	Database string
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete frames no longer referenced by any time",
		Long: `Delete content-addressed frames that no frame time points at anymore.

Edits re-point times at new content, leaving the old frames behind; prune
reclaims that space.

Example:
  autocache prune --db ./cache.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to cache database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPrune(opts *PruneOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	n, err := st.PruneUnreferenced()
	if err != nil {
		return WrapExitError(ExitFailure, "prune failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(map[string]int64{"pruned": n})
	}
	return out.Success(fmt.Sprintf("pruned %d unreferenced frames", n))
}

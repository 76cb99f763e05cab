package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/casefile/casefile/internal/archive"
	"github.com/casefile/casefile/internal/store"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Config   string
	Database string
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the persisted snapshot as canonical JSON",
		Long: `Print the persisted final state (open files and recent list)
as canonical JSON: sorted keys, no HTML escaping, NFC-normalized
strings. The same state always prints the same bytes.

Example:
  casefile snapshot --db ./casefile.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (overrides config)")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadSessionConfig(&SessionOptions{
		RootOptions: opts.RootOptions,
		Config:      opts.Config,
		Database:    opts.Database,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fs, err := st.LoadFinalState(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load snapshot", err)
	}

	data, err := archive.MarshalSnapshot(fs)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to marshal snapshot", err)
	}

	if opts.Format == "json" {
		return formatter.Success(json.RawMessage(data))
	}
	return formatter.Success(string(data))
}

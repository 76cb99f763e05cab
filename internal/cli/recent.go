package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/casefile/casefile/internal/store"
)

// RecentOptions holds flags for the recent command.
type RecentOptions struct {
	*RootOptions
	Config   string
	Database string
	Limit    int
}

// NewRecentCommand creates the recent command.
func NewRecentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently archived files",
		Long: `List the recent-files table of the snapshot database in
persisted order.

Example:
  casefile recent --db ./casefile.db
  casefile recent --db ./casefile.db --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (overrides config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries to list (0 = all)")

	return cmd
}

func runRecent(opts *RecentOptions, cmd *cobra.Command) error {
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

	paths, err := st.RecentPaths(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read recent files", err)
	}

	if opts.Format == "json" {
		return formatter.Success(paths)
	}
	if len(paths) == 0 {
		return formatter.Success("no recent files")
	}
	return formatter.Success(strings.Join(paths, "\n"))
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/casefile/casefile/internal/archive"
	"github.com/casefile/casefile/internal/config"
	"github.com/casefile/casefile/internal/store"
)

// SessionOptions holds flags for the session command.
type SessionOptions struct {
	*RootOptions
	Config   string
	Database string
}

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session [paths...]",
		Short: "Run an archiving session over the given files",
		Long: `Run a multi-document archiving session.

The engine loads the persisted snapshot from the database, seeds the
recent list from it, opens the given paths, and persists the final
state back on window close.

Example:
  casefile session --db ./casefile.db report.sql notes.sql
  casefile session --config ./casefile.yaml --verbose`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (overrides config)")

	return cmd
}

// loadSessionConfig resolves the effective config: defaults, then the
// config file, then flag overrides.
func loadSessionConfig(opts *SessionOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

func runSession(opts *SessionOptions, paths []string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadSessionConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	prev, err := st.LoadFinalState(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	m := archive.NewMulti(cfg.EngineOptions())
	if cfg.PathPrefix != "" {
		m.SetPathPrefix(cfg.PathPrefix)
	}
	if len(prev.Recent) > 0 {
		m.AddFiles(prev.Recent)
	}

	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, absErr := filepath.Abs(p)
		if absErr != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid path %s", p), absErr)
		}
		absPaths = append(absPaths, abs)
	}

	// The session ends once every requested path resolved, one way or
	// the other. Callbacks run on the consumer goroutine, so pending
	// needs no locking.
	pending := len(absPaths)
	resolve := func() {
		pending--
		if pending == 0 {
			m.RequestWindowClose()
		}
	}
	m.OnOpened(func(f archive.OpenedFile) {
		slog.Info("opened", "path", f.Path, "index", f.Index)
		resolve()
	})
	m.OnReopen(func(f archive.OpenedFile) {
		slog.Info("already open", "path", f.Path)
		resolve()
	})
	m.OnError(func(msg string) {
		slog.Error("archiver error", "message", msg)
		resolve()
	})
	m.OnWindowClose(func() { m.Stop() })

	for _, p := range absPaths {
		m.RequestOpen(p)
	}
	if pending == 0 {
		m.RequestWindowClose()
	}

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

	if runErr := m.Run(ctx); runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			slog.Info("session interrupted, snapshot not updated")
			return nil
		}
		return WrapExitError(ExitFailure, "session failed", runErr)
	}

	final := m.FinalState()
	if err := st.SaveFinalState(context.Background(), final); err != nil {
		return WrapExitError(ExitFailure, "failed to persist snapshot", err)
	}
	slog.Info("snapshot persisted", "open", len(final.Files), "recent", len(final.Recent))

	return formatter.Success(fmt.Sprintf("session closed: %d open, %d recent", len(final.Files), len(final.Recent)))
}

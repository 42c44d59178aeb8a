package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/phpindex"
)

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build [path]",
		Short: "Rebuild the index of a project from scratch",
		Long:  "Empties the index, seeds the built-in declarations and indexes every eligible file under the project root.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runIndex(cmd.Context(), args, "build")
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [path]",
		Short: "Re-index files that changed since the last run",
		Long:  "Drops files that were removed or excluded and re-indexes files whose content hash changed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runIndex(cmd.Context(), args, "update")
		},
	}
}

// runStats counts what a build or update did.
type runStats struct {
	files   int
	skipped int
}

// callbacks reports progress at debug level and per-file failures as
// warnings.
func (s *runStats) callbacks(log *slog.Logger) phpindex.Callbacks {
	return phpindex.Callbacks{
		Progress: func(done, total int, path string) {
			s.files = done
			log.Debug("indexed", "done", done, "total", total, "path", path)
		},
		Error: func(err error) {
			var fe *phpindex.FileError
			if errors.As(err, &fe) {
				s.skipped++
				log.Warn("skipped file", "path", fe.Path, "err", fe.Err)
			}
		},
	}
}

func (a *app) runIndex(ctx context.Context, args []string, mode string) error {
	start := time.Now()
	root, err := a.projectRoot(args)
	if err != nil {
		return err
	}
	e, cfg, err := a.openEngine(root)
	if err != nil {
		return err
	}
	defer e.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	var stats runStats
	cb := stats.callbacks(a.logger(mode))
	if mode == "build" {
		err = e.Build(ctx, root, cb)
	} else {
		err = e.Update(ctx, root, cb)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", mode, err)
	}

	fmt.Fprintf(a.errOut, "Indexed %s in %s (%d files, %d skipped)\n",
		root, time.Since(start).Round(time.Millisecond), stats.files, stats.skipped)
	fmt.Fprintf(a.errOut, "Database: %s\n", cfg.DSN)
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Keep the index up to date while files change",
		Long:  "Runs an update, then watches the project tree and updates the index after each burst of changes. Stops on interrupt.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.projectRoot(args)
			if err != nil {
				return err
			}
			e, _, err := a.openEngine(root)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			log := a.logger("watch")
			var stats runStats
			cb := stats.callbacks(log)
			if err := e.Update(ctx, root, cb); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			cb.Finished = func() { log.Info("index updated", "files", stats.files) }
			cb.Error = func(err error) { log.Error("update failed", "err", err) }

			fmt.Fprintf(a.errOut, "Watching %s\n", root)
			return e.Watch(ctx, root, cb, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", phpindex.DefaultDebounce, "quiet period before an update runs")
	return cmd
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <league>",
		Short: "Fetch the trade history of a league once",
		Long: `Fetch the trade history feed of a league and store the trades not yet present.

A legacy partition of the league is copied first if it was never migrated.
Requests are limited to one per cooldown interval (SYNC_COOLDOWN).

Example:
  tradesync sync Standard
  tradesync sync "Dawn of the Hunt" --locale ja --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd, args[0])
		},
	}
}

func runSync(opts *RootOptions, cmd *cobra.Command, league string) error {
	a, err := opts.openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	l := opts.locale(a)
	out := opts.formatter(cmd)

	a.Migrator.MigrateIfNeeded(ctx, l, league)

	result, err := a.Sync.Synchronize(ctx, league, l)
	if err != nil {
		return out.Failure(err)
	}

	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%s): %d new, %d fetched, %d stored\n",
			league, l, result.AddedCount, result.FetchedCount, result.TotalCount)
	})
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		leagues  []string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Synchronize leagues periodically until interrupted",
		Long: `Run the background worker in the foreground. Each tick synchronizes the
league synchronized least recently.

Example:
  tradesync watch --league Standard --league Hardcore --interval 5m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, cmd, leagues, interval)
		},
	}

	cmd.Flags().StringSliceVar(&leagues, "league", nil, "league to keep in sync (repeatable), default SYNC_LEAGUES")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval, default SYNC_POLL_INTERVAL")

	return cmd
}

func runWatch(opts *RootOptions, cmd *cobra.Command, leagues []string, interval time.Duration) error {
	a, err := opts.openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if len(leagues) > 0 {
		a.Config.Sync.Leagues = leagues
	}
	if interval > 0 {
		a.Config.Sync.PollInterval = interval
	}
	if opts.Locale != "" {
		a.Config.Sync.Locale = opts.Locale
	}

	w, err := a.NewWorker()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create worker", err)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := w.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start worker", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %v every %s (Ctrl-C to stop)\n", a.Config.Sync.Leagues, a.Config.Sync.PollInterval)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := w.Stop(stopCtx); err != nil {
		return WrapExitError(ExitCommandError, "failed to stop worker", err)
	}

	status := w.GetStatus()
	return opts.formatter(cmd).Success(status, func(out io.Writer) {
		fmt.Fprintf(out, "%d passes, %d rate limited, %d failed\n", status.Passes, status.RateLimited, status.Failures)
	})
}

// commandContext returns the command's context or a background one
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}


// Package cli implements the tradesync command line tool.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/trade-history-sync/internal/app"
	"github.com/trade-history-sync/internal/config"
	"github.com/trade-history-sync/internal/locale"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/types"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Locale  string // overrides SYNC_LOCALE when set

	// LoadConfig reads configuration. Default: config.LoadConfig
	LoadConfig func() (*config.Config, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tradesync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.LoadConfig})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tradesync",
		Short: "Synchronize trade history into a local store",
		Long: `tradesync fetches completed trades from the trade site history feed and
keeps them in a local store partitioned by locale and league.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Locale, "locale", "l", "", "site locale (en|ja), default from SYNC_LOCALE")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewLeaguesCommand(opts))
	cmd.AddCommand(NewCredentialsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewDBCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads configuration, wrapping failures as command errors
func (o *RootOptions) loadConfig() (*config.Config, error) {
	load := o.LoadConfig
	if load == nil {
		load = config.LoadConfig
	}
	cfg, err := load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openApp loads configuration and connects the stores. Logs go to errOut so
// JSON output on stdout stays parseable.
func (o *RootOptions) openApp(errOut io.Writer) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	level := logging.ParseLogLevel(cfg.Logging.Level)
	if !o.Verbose {
		level = logging.LevelWarn
	}
	logger := logging.NewLoggerWithOutput(level, logging.ParseLogFormat(cfg.Logging.Format), errOut)

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	return a, nil
}

// locale resolves the --locale flag against the configured default
func (o *RootOptions) locale(a *app.App) types.Locale {
	if o.Locale != "" {
		return locale.Normalize(o.Locale)
	}
	return a.Locale()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

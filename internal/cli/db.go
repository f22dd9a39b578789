package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/trade-history-sync/internal/storage"
)

// NewDBCommand creates the db command group.
func NewDBCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Local store maintenance",
	}
	cmd.AddCommand(newMigrateCommand(rootOpts))
	return cmd
}

func newMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|version>",
		Short: "Apply, roll back or inspect the schema of the configured store",
		Long: `Manage the schema of the configured store (STORE_DRIVER).

Partition tables are created on demand and are not versioned; only the
synchronization state table is.

Example:
  tradesync db migrate up
  tradesync db migrate version`,
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd, args[0])
		},
	}
}

// MigrationStatus is the schema version after a migrate command
type MigrationStatus struct {
	Action  string `json:"action"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
}

func runMigrate(opts *RootOptions, cmd *cobra.Command, action string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	stores, err := storage.Connect(&cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open local store", err)
	}
	defer stores.Close()

	m, err := stores.SchemaMigrator(&cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create migrator", err)
	}
	defer m.Close()

	switch action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown action: %s", action))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "migration "+action+" failed", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err)
	}

	status := MigrationStatus{Action: action, Version: version, Dirty: dirty}
	return opts.formatter(cmd).Success(status, func(w io.Writer) {
		fmt.Fprintf(w, "Schema version %d (dirty: %v)\n", status.Version, status.Dirty)
	})
}

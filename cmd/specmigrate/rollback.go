package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speclayout/specmigrate/internal/migrate"
	"github.com/speclayout/specmigrate/internal/ui"
)

var rollbackLog string

var rollbackCmd = &cobra.Command{
	Use:     "rollback",
	GroupID: "migrate",
	Short:   "Restore the specs directory from a migration backup",
	Long: `Read a migration log, delete the specs directory it names and copy the
backup recorded in the log back in its place.

This is the same operation as the generated rollback_migration.sh script.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runRollback(cmd))
	},
}

func runRollback(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	path := rollbackLog
	if path == "" {
		path = cfg.MigrationLog
	}

	l, err := migrate.ReadLog(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return errReported
	}

	fmt.Fprintf(out, "%s Restoring %s from %s\n", ui.RenderAccent(ui.IconInfo), l.SpecsDir, l.BackupDir)
	if err := migrate.Restore(l, component("rollback")); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return errReported
	}
	fmt.Fprintf(out, "%s Rollback complete\n", ui.RenderPass(ui.IconPass))
	return nil
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackLog, "log", "", "Migration log to roll back (default migration_log)")

	rootCmd.AddCommand(rollbackCmd)
}

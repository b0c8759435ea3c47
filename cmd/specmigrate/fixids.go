package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/speclayout/specmigrate/internal/migrate"
	"github.com/speclayout/specmigrate/internal/ui"
)

var fixIDsDryRun bool

var fixIDsCmd = &cobra.Command{
	Use:     "fix-ids",
	GroupID: "migrate",
	Short:   "Replace leftover numeric ids in migrated documents with unique tokens",
	Long: `Walk every spec.md under the specs directory and give each document whose
id is not yet an 8-hex token its unique_id (or a token derived from its
directory path). Documents that already carry a token are left alone, so the
pass can be repeated safely.`,
	Run: func(cmd *cobra.Command, args []string) {
		res, err := migrate.FixIDs(cfg.SpecsDir, migrate.FixOptions{
			Namespace: cfg.Namespace,
			DryRun:    fixIDsDryRun,
			Logger:    component("fix-ids"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		ui.RenderFix(cmd.OutOrStdout(), res, fixIDsDryRun)
	},
}

func init() {
	fixIDsCmd.Flags().BoolVar(&fixIDsDryRun, "dry-run", false, "Report what would change without writing")

	rootCmd.AddCommand(fixIDsCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speclayout/specmigrate/internal/migrate"
	"github.com/speclayout/specmigrate/internal/ui"
)

var planCmd = &cobra.Command{
	Use:     "plan",
	GroupID: "inspect",
	Short:   "Show the id mapping and target paths without changing anything",
	Long: `Load, resolve and rewrite the corpus in memory and print what a migration
would do: the old to new id mapping with tokens and target paths, orphans
with fallback ids, unresolved references and skipped documents.

Exits non-zero when the migration would fail its preflight.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runPlan(cmd))
	},
}

func runPlan(cmd *cobra.Command) error {
	p, err := migrate.BuildPlan(cfg.SpecsDir, migrate.PlanOptions{
		Exclude:   cfg.Exclude,
		Namespace: cfg.Namespace,
		Logger:    component("plan"),
	})
	ui.RenderPlan(cmd.OutOrStdout(), p)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return errReported
	}
	return nil
}

func init() {
	rootCmd.AddCommand(planCmd)
}

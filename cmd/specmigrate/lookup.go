package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/speclayout/specmigrate/internal/ui"
)

var lookupCmd = &cobra.Command{
	Use:     "lookup <id>",
	GroupID: "inspect",
	Short:   "Find a document's ids across recorded migrations",
	Long: `Search the migration ledger for an old numeric id, a new scoped id, a
qualified id (E01/F02/T03) or a unique token and print every matching
mapping, newest run first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runLookup(cmd, args[0]))
	},
}

func runLookup(cmd *cobra.Command, id string) error {
	stderr := cmd.ErrOrStderr()
	if cfg.Ledger == "" {
		fmt.Fprintf(stderr, "Error: ledger is disabled in the configuration\n")
		return errReported
	}
	if _, err := os.Stat(cfg.Ledger); os.IsNotExist(err) {
		fmt.Fprintf(stderr, "Error: no ledger at %s; run a migration first\n", cfg.Ledger)
		return errReported
	}

	db, err := openLedger(cmd.Context())
	if err != nil {
		fmt.Fprintf(stderr, "Error opening ledger: %v\n", err)
		return errReported
	}
	defer db.Close()

	rows, err := db.Lookup(cmd.Context(), id)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return errReported
	}
	ui.RenderLookup(cmd.OutOrStdout(), id, rows)
	return nil
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

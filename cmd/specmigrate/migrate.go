package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/speclayout/specmigrate/internal/ledger"
	"github.com/speclayout/specmigrate/internal/migrate"
	"github.com/speclayout/specmigrate/internal/ui"
)

var (
	migrateYes    bool
	migrateDryRun bool
	migrateNoVCS  bool
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "migrate",
	Short:   "Move the specs directory into the hierarchical layout",
	Long: `Migrate the flat specs directory into the hierarchical layout.

The run:
  1. Loads and resolves the corpus read-only and stops on any structural
     problem (duplicate ids, parent cycles, mixed layouts, existing targets)
  2. Checks the working copy for uncommitted changes under the specs dir
  3. Asks for confirmation (skip with --yes)
  4. Copies the specs dir to a timestamped sibling backup
  5. Writes every document to its new path, then removes the old files
  6. Writes the migration log, the ledger entry and a rollback script

A corpus that is already migrated is left untouched.

Examples:
  specmigrate migrate --dry-run
  specmigrate migrate --yes`,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runMigrate(cmd))
	},
}

func runMigrate(cmd *cobra.Command) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	opts := migrate.Options{
		SpecsDir:         cfg.SpecsDir,
		BackupPrefix:     cfg.Backup.Prefix,
		BackupTimeFormat: cfg.Backup.TimeFormat,
		LogPath:          cfg.MigrationLog,
		RollbackScript:   cfg.RollbackScript,
		Exclude:          cfg.Exclude,
		Namespace:        cfg.Namespace,
		DryRun:           migrateDryRun,
		RequireClean:     cfg.RequireClean,
		SkipVCSCheck:     migrateNoVCS,
		Logger:           component("migrate"),
	}

	if !migrateDryRun && !migrateYes {
		if !ui.IsInteractive() {
			fmt.Fprintf(stderr, "Error: stdin is not a terminal; rerun with --yes to migrate without confirmation\n")
			return errReported
		}
		opts.Confirm = confirmPlan
	}

	// Closed on every return, before any exit.
	if !migrateDryRun && cfg.Ledger != "" {
		db, err := openLedger(cmd.Context())
		if err != nil {
			fmt.Fprintf(stderr, "Warning: ledger disabled: %v\n", err)
		} else {
			defer db.Close()
			opts.Recorder = db
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := migrate.New(opts).Run(ctx)
	if migrate.IsAborted(err) {
		fmt.Fprintf(stderr, "Migration cancelled; nothing was changed\n")
		return errReported
	}
	if migrateDryRun && res != nil {
		ui.RenderPlan(stdout, res.Plan)
	}
	if err != nil {
		// Past the backup the summary shows what was already written.
		if res != nil && res.BackupDir != "" {
			ui.RenderResult(stdout, res)
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return errReported
	}
	ui.RenderResult(stdout, res)
	return nil
}

func confirmPlan(p *migrate.Plan) (bool, error) {
	ui.RenderPlan(os.Stdout, p)
	fmt.Println()
	return ui.Confirm(
		fmt.Sprintf("Migrate %d documents in %s?", p.Specs(), p.Root),
		"A backup is taken first. Old files are removed only after every new file is written.",
	)
}

// openLedger opens the configured ledger, creating its directory.
func openLedger(ctx context.Context) (*ledger.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Ledger), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return ledger.OpenContext(ctx, cfg.Ledger)
}

func init() {
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Do not ask for confirmation")
	migrateCmd.Flags().BoolVar(&migrateYes, "force", false, "Alias for --yes")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Plan only; do not touch the filesystem")
	migrateCmd.Flags().BoolVar(&migrateNoVCS, "skip-vcs-check", false, "Do not check the working copy for uncommitted changes")

	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/speclayout/specmigrate/internal/config"
	"github.com/speclayout/specmigrate/internal/logging"
)

var (
	configFile string
	verbose    bool

	v         *viper.Viper
	cfg       *config.Config
	runLogger *log.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "specmigrate",
	Short: "Migrate a flat spec corpus into a hierarchical directory layout",
	Long: `specmigrate moves numbered spec documents (specs/1013.md) into an
epic/feature/task/subtask tree (specs/E01/F02/T03/spec.md), renumbering them
per parent and rewriting every cross-reference.

The specs directory is backed up before anything is touched, and each run
leaves a migration log, a rollback script and a ledger entry behind.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := setup(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "migrate", Title: "Migration:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
	)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default .specmigrate.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also log to stderr")
	rootCmd.PersistentFlags().String("specs-dir", "", "Specs directory (overrides specs_dir)")
	v = newViper()
}

func newViper() *viper.Viper {
	v := config.New()
	_ = v.BindPFlag("specs_dir", rootCmd.PersistentFlags().Lookup("specs-dir"))
	return v
}

// setup loads the configuration and opens the run log.
func setup() error {
	if err := config.ReadFile(v, configFile); err != nil {
		return err
	}
	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	runLogger, logCloser, err = logging.New(cfg.Log, verbose)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	return nil
}

// errReported is returned by command bodies that already printed their error.
var errReported = errors.New("error already reported")

// exitOnError ends the process when a command body failed.
func exitOnError(err error) {
	if err != nil {
		os.Exit(1)
	}
}

// component returns a child of the run logger.
func component(name string) *log.Logger {
	return logging.With(runLogger, name)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"
)

// RollbackScript returns a bash script that replaces specsDir with a
// verbatim copy of backupDir.
func RollbackScript(specsDir, backupDir string, at time.Time) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("# Rollback script for spec migration\n")
	fmt.Fprintf(&b, "# Generated: %s\n", at.Format(time.RFC3339))
	b.WriteString("set -euo pipefail\n\n")
	fmt.Fprintf(&b, "if [ ! -d %s ]; then\n", shellQuote(backupDir))
	fmt.Fprintf(&b, "  echo \"Backup not found: %s\" >&2\n", strings.ReplaceAll(backupDir, `"`, `\"`))
	b.WriteString("  exit 1\nfi\n\n")
	b.WriteString("echo \"Rolling back spec migration...\"\n")
	fmt.Fprintf(&b, "rm -rf %s\n", shellQuote(specsDir))
	fmt.Fprintf(&b, "cp -R %s %s\n", shellQuote(backupDir), shellQuote(specsDir))
	b.WriteString("echo \"Rollback complete!\"\n")
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// WriteRollbackScript writes the rollback script to path and marks it
// executable.
func WriteRollbackScript(w Writer, path, specsDir, backupDir string, at time.Time) error {
	if err := w.WriteFile(path, []byte(RollbackScript(specsDir, backupDir, at))); err != nil {
		return fmt.Errorf("failed to write rollback script: %w", err)
	}
	// #nosec G302 - the rollback script is meant to be executed
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("failed to make rollback script executable: %w", err)
	}
	return nil
}

// Restore replaces the specs directory recorded in l with its backup.
func Restore(l *Log, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stderr, "[rollback] ", log.LstdFlags)
	}
	if l.BackupDir == "" || l.SpecsDir == "" {
		return fmt.Errorf("%w: log names no backup", ErrNoBackup)
	}

	info, err := os.Stat(l.BackupDir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return fmt.Errorf("%w: %s", ErrNoBackup, l.BackupDir)
	}
	if err != nil {
		return fmt.Errorf("failed to check backup: %w", err)
	}

	logger.Printf("removing %s", l.SpecsDir)
	if err := os.RemoveAll(l.SpecsDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", l.SpecsDir, err)
	}
	logger.Printf("restoring %s from %s", l.SpecsDir, l.BackupDir)
	if err := copyTree(l.BackupDir, l.SpecsDir); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

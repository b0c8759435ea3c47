// Package migrate moves a spec corpus into the hierarchical layout.
//
// A run is a two-phase commit over the filesystem. Every document is
// written to its new location first; originals are removed only after all
// writes succeed. A backup copy is taken before anything else changes and a
// rollback script is left next to the migration log.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/speclayout/specmigrate/internal/vcs"
)

// Default file names, relative to the working directory.
const (
	DefaultSpecsDir         = "specs"
	DefaultBackupPrefix     = "specs_backup_"
	DefaultBackupTimeFormat = "20060102_150405"
	DefaultLogPath          = "migration_log.json"
	DefaultRollbackScript   = "rollback_migration.sh"
)

// Recorder persists a finished run, e.g. in the ledger database.
type Recorder interface {
	Record(ctx context.Context, l *Log) error
}

// Options contains configuration for the migration
type Options struct {
	SpecsDir         string
	BackupPrefix     string
	BackupTimeFormat string
	LogPath          string
	RollbackScript   string

	// Exclude overrides the loader's default exclude patterns.
	Exclude   []string
	Namespace uuid.UUID

	// DryRun stops after planning. Nothing is written.
	DryRun bool

	// RequireClean turns uncommitted VCS changes under SpecsDir into an
	// error instead of a warning.
	RequireClean bool
	SkipVCSCheck bool

	// Confirm is asked once the plan is known and before the backup.
	// Returning false aborts with ErrAborted. Nil means proceed.
	Confirm func(*Plan) (bool, error)

	Writer   Writer
	Recorder Recorder
	Logger   *log.Logger
	Now      func() time.Time
}

// Result contains the outcome of a run
type Result struct {
	State State

	// Err is the failure reason when State is Failed.
	Err error

	// NoOp is set when there was nothing to migrate.
	NoOp   bool
	DryRun bool
	Layout Layout

	Plan *Plan

	BackupDir  string
	LogPath    string
	ScriptPath string

	// Written lists new paths in write order.
	Written []string
	Removed int

	Dirty []vcs.FileStatus

	// Planned counts documents in the plan; Migrated those actually written.
	Planned   int
	Migrated  int
	Skipped   int
	Conflicts int
}

// Migrator runs migrations.
type Migrator struct {
	opts   Options
	logger *log.Logger
}

// New returns a Migrator with defaults filled in.
func New(opts Options) *Migrator {
	if opts.SpecsDir == "" {
		opts.SpecsDir = DefaultSpecsDir
	}
	if opts.BackupPrefix == "" {
		opts.BackupPrefix = DefaultBackupPrefix
	}
	if opts.BackupTimeFormat == "" {
		opts.BackupTimeFormat = DefaultBackupTimeFormat
	}
	if opts.LogPath == "" {
		opts.LogPath = DefaultLogPath
	}
	if opts.RollbackScript == "" {
		opts.RollbackScript = DefaultRollbackScript
	}
	if opts.Writer == nil {
		opts.Writer = AtomicWriter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	}
	return &Migrator{opts: opts, logger: logger}
}

// Plan runs the read-only preflight: load, resolve and render.
func (m *Migrator) Plan() (*Plan, error) {
	return BuildPlan(m.opts.SpecsDir, PlanOptions{
		Exclude:   m.opts.Exclude,
		Namespace: m.opts.Namespace,
		Logger:    m.logger,
	})
}

// Run performs the migration. The returned Result is never nil; on failure
// its State is Failed and the error is also returned.
func (m *Migrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{State: NotStarted}

	plan, err := m.Plan()
	res.Plan = plan
	if plan != nil {
		res.Layout = plan.Layout
		res.summarize(plan)
	}
	if err != nil {
		return m.fail(res, err)
	}
	if err := plan.Load.Err(); err != nil {
		m.logger.Printf("Warning: %v; these documents are left in place", err)
	}

	switch plan.Layout {
	case LayoutEmpty:
		m.logger.Printf("no spec documents under %s, nothing to migrate", plan.Root)
		res.NoOp = true
		return res, nil
	case LayoutMigrated:
		m.logger.Printf("%s is already migrated, nothing to do", plan.Root)
		res.NoOp = true
		return res, nil
	}

	if m.opts.DryRun {
		res.DryRun = true
		return res, nil
	}

	if !m.opts.SkipVCSCheck {
		dirty, err := m.checkWorkspace(ctx, plan.Root)
		res.Dirty = dirty
		if err != nil {
			return m.fail(res, err)
		}
	}

	if m.opts.Confirm != nil {
		ok, err := m.opts.Confirm(plan)
		if err != nil {
			return m.fail(res, fmt.Errorf("confirmation failed: %w", err))
		}
		if !ok {
			return m.fail(res, ErrAborted)
		}
	}
	if err := ctx.Err(); err != nil {
		return m.fail(res, err)
	}

	// NotStarted -> BackedUp
	now := m.opts.Now()
	res.BackupDir = filepath.Join(filepath.Dir(plan.Root), m.opts.BackupPrefix+now.Format(m.opts.BackupTimeFormat))
	m.logger.Printf("backing up %s to %s", plan.Root, res.BackupDir)
	if err := backup(plan.Root, res.BackupDir); err != nil {
		return m.fail(res, err)
	}
	m.advance(res, BackedUp)

	// BackedUp -> Loaded
	plan, err = loadPlan(plan.Root, m.opts.Exclude, m.logger)
	if err != nil {
		return m.fail(res, err)
	}
	res.Plan = plan
	if plan.Layout != LayoutLegacy {
		return m.fail(res, fmt.Errorf("%w: layout changed to %s after backup", ErrMixedLayout, plan.Layout))
	}
	m.advance(res, Loaded)

	// Loaded -> Resolved
	if err := plan.resolve(m.opts.Namespace, m.logger); err != nil {
		return m.fail(res, err)
	}
	if err := plan.render(m.logger); err != nil {
		return m.fail(res, err)
	}
	if err := plan.checkTargets(); err != nil {
		return m.fail(res, err)
	}
	res.summarize(plan)
	m.advance(res, Resolved)

	// Resolved -> Written
	if err := m.write(ctx, plan, res); err != nil {
		return m.fail(res, err)
	}
	m.advance(res, Written)

	// Written -> Cleaned. From here on the run does not stop for ctx.
	if err := m.cleanup(plan, res); err != nil {
		return m.fail(res, err)
	}
	m.advance(res, Cleaned)

	// Cleaned -> Logged
	record := newLog(plan, res.BackupDir, now)
	if err := WriteLog(m.opts.Writer, m.opts.LogPath, record); err != nil {
		return m.fail(res, err)
	}
	res.LogPath = m.opts.LogPath
	if m.opts.Recorder != nil {
		if err := m.opts.Recorder.Record(ctx, record); err != nil {
			m.logger.Printf("Warning: failed to record run in ledger: %v", err)
		}
	}
	m.advance(res, Logged)

	// Logged -> Done
	if err := WriteRollbackScript(m.opts.Writer, m.opts.RollbackScript, plan.Root, res.BackupDir, now); err != nil {
		return m.fail(res, err)
	}
	res.ScriptPath = m.opts.RollbackScript
	m.advance(res, Done)

	m.logger.Printf("migrated %d document(s), skipped %d, %d conflict(s)", res.Migrated, res.Skipped, res.Conflicts)
	return res, nil
}

// write is phase one: every entry goes to its new path, nothing is removed.
func (m *Migrator) write(ctx context.Context, plan *Plan, res *Result) error {
	for _, e := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return &WriteError{Path: e.NewPath, Written: res.Written, Err: err}
		}
		if err := m.opts.Writer.WriteFile(e.NewPath, e.Content); err != nil {
			return &WriteError{Path: e.NewPath, Written: res.Written, Err: err}
		}
		res.Written = append(res.Written, e.NewPath)
		if e.Kind == OpSpec {
			res.Migrated++
		}
		m.logger.Printf("wrote %s -> %s", e.OldID, e.NewPath)
	}
	return nil
}

// cleanup is phase two: originals of written entries are removed and empty
// directories pruned. It tries every file before reporting failures.
func (m *Migrator) cleanup(plan *Plan, res *Result) error {
	targets := make(map[string]bool, len(plan.Entries))
	for _, e := range plan.Entries {
		targets[e.NewPath] = true
	}

	var failed []string
	var firstErr error
	for _, e := range plan.Entries {
		if targets[e.OldPath] {
			continue
		}
		if err := os.Remove(e.OldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			failed = append(failed, e.OldPath)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Removed++
	}
	if len(failed) > 0 {
		return &CleanupError{Paths: failed, Err: firstErr}
	}
	return pruneEmptyDirs(plan.Root)
}

func (m *Migrator) checkWorkspace(ctx context.Context, root string) ([]vcs.FileStatus, error) {
	repo, err := vcs.Detect(root)
	if err != nil {
		return nil, nil
	}
	dirty, err := vcs.Status(ctx, repo, root)
	switch {
	case vcs.IsSkippable(err):
		m.logger.Printf("Warning: %s repository found but its binary is not available, skipping status check", repo.Type)
		return nil, nil
	case err != nil:
		if m.opts.RequireClean {
			return nil, fmt.Errorf("failed to check working copy: %w", err)
		}
		m.logger.Printf("Warning: failed to check working copy: %v", err)
		return nil, nil
	}

	if len(dirty) > 0 {
		if m.opts.RequireClean {
			return dirty, fmt.Errorf("%w: %d path(s) under %s", ErrDirtyWorkspace, len(dirty), root)
		}
		m.logger.Printf("Warning: %d uncommitted change(s) under %s, the backup is the only copy", len(dirty), root)
	}
	return dirty, nil
}

func (m *Migrator) advance(res *Result, to State) {
	if !res.State.next(to) {
		panic(fmt.Sprintf("migrate: invalid transition %s -> %s", res.State, to))
	}
	res.State = to
	m.logger.Printf("state: %s", to)
}

func (m *Migrator) fail(res *Result, err error) (*Result, error) {
	res.State = Failed
	res.Err = err
	m.logger.Printf("state: %s: %v", Failed, err)
	return res, err
}

func (r *Result) summarize(p *Plan) {
	r.Planned = p.Specs()
	r.Skipped = len(p.Skipped)
	if p.Load != nil {
		r.Skipped += len(p.Load.Skipped)
		r.Conflicts = len(p.Load.Conflicts)
	}
}

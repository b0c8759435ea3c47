package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/speclayout/specmigrate/internal/corpus"
	"github.com/speclayout/specmigrate/internal/hierarchy"
	"github.com/speclayout/specmigrate/internal/rewrite"
	"github.com/speclayout/specmigrate/internal/vcs"
)

// OpKind names the kind of file a plan entry moves.
type OpKind string

const (
	OpSpec    OpKind = "spec"
	OpContext OpKind = "context"
)

// Entry is one file to write in the new layout.
type Entry struct {
	Kind      OpKind
	OldID     string
	NewID     string
	Qualified string
	Token     string
	Type      corpus.Type

	OldPath string
	NewPath string

	Content []byte
}

// SkippedNode is a loaded document left out of the write phase.
type SkippedNode struct {
	OldID string
	Path  string
	Err   error
}

// Layout classifies the documents found under a specs directory.
type Layout int

const (
	LayoutEmpty Layout = iota
	LayoutLegacy
	LayoutMigrated
	LayoutMixed
)

func (l Layout) String() string {
	switch l {
	case LayoutLegacy:
		return "legacy"
	case LayoutMigrated:
		return "migrated"
	case LayoutMixed:
		return "mixed"
	}
	return "empty"
}

// PlanOptions configures BuildPlan.
type PlanOptions struct {
	Exclude   []string
	Namespace uuid.UUID
	Logger    *log.Logger
}

// Plan is the complete in-memory result of load, resolve and rewrite.
// Building a plan never touches the filesystem beyond reads.
type Plan struct {
	Root   string
	Layout Layout

	Load       *corpus.Result
	Resolution *hierarchy.Result

	// Entries are sorted by NewPath.
	Entries []Entry

	Skipped []SkippedNode
	Dropped []rewrite.Ref

	// Unmatched context files have no loaded document and stay in place.
	Unmatched []corpus.ContextFile
}

// BuildPlan loads root, resolves the hierarchy and renders every document
// for its new location. A legacy corpus with a planned target that already
// exists fails with ErrTargetExists. Migrated and empty corpora return a
// plan with no entries.
func BuildPlan(root string, opts PlanOptions) (*Plan, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[plan] ", log.LstdFlags)
	}

	p, err := loadPlan(root, opts.Exclude, logger)
	if err != nil {
		return p, err
	}
	switch p.Layout {
	case LayoutEmpty, LayoutMigrated:
		return p, nil
	case LayoutMixed:
		return p, fmt.Errorf("%w under %s", ErrMixedLayout, p.Root)
	}

	if err := p.resolve(opts.Namespace, logger); err != nil {
		return p, err
	}
	if err := p.render(logger); err != nil {
		return p, err
	}
	return p, p.checkTargets()
}

func loadPlan(root string, exclude []string, logger *log.Logger) (*Plan, error) {
	loaded, err := corpus.Load(root, corpus.Options{Exclude: exclude, Logger: logger})
	if err != nil {
		return nil, err
	}
	// Claimants of a duplicated id are already out of the table. They stay
	// in place and are counted as conflicts.
	return &Plan{Root: loaded.Root, Load: loaded, Layout: DetectLayout(loaded.Table)}, nil
}

// DetectLayout reports whether the documents in table already sit at
// <new id>/spec.md.
func DetectLayout(table *corpus.Table) Layout {
	var migrated, legacy int
	for _, n := range table.Nodes() {
		if isMigrated(n) {
			migrated++
		} else {
			legacy++
		}
	}
	switch {
	case migrated == 0 && legacy == 0:
		return LayoutEmpty
	case legacy == 0:
		return LayoutMigrated
	case migrated == 0:
		return LayoutLegacy
	}
	return LayoutMixed
}

func isMigrated(n *corpus.Node) bool {
	rel := filepath.FromSlash(n.Rel)
	dir := filepath.Dir(rel)
	return filepath.Base(rel) == rewrite.SpecFile && dir != "." && hierarchy.IsNewID(filepath.Base(dir))
}

func (p *Plan) resolve(ns uuid.UUID, logger *log.Logger) error {
	res, err := hierarchy.Resolve(p.Load.Table, hierarchy.Options{Namespace: ns, Logger: logger})
	if err != nil {
		return err
	}
	p.Resolution = res
	return nil
}

// render rewrites every node and matched context file. Nodes that fail to
// encode are skipped, and so is their context file.
func (p *Plan) render(logger *log.Logger) error {
	rw := rewrite.New(p.Resolution.IDs, p.Resolution.Tokens, logger)
	placed := make(map[string]hierarchy.Assignment)

	for _, a := range p.Resolution.Assignments() {
		n, _ := p.Load.Table.Get(a.OldID)
		out, err := rw.Rewrite(n)
		if err != nil {
			logger.Printf("Warning: skipping %s: %v", n.Rel, err)
			p.Skipped = append(p.Skipped, SkippedNode{OldID: n.OldID, Path: n.Path, Err: err})
			continue
		}
		p.Dropped = append(p.Dropped, out.Dropped()...)
		p.Entries = append(p.Entries, Entry{
			Kind:      OpSpec,
			OldID:     n.OldID,
			NewID:     a.NewID,
			Qualified: a.Qualified(),
			Token:     a.Token,
			Type:      n.Type,
			OldPath:   n.Path,
			NewPath:   p.targetPath(a, rewrite.SpecFile),
			Content:   []byte(out.Content),
		})
		placed[n.OldID] = a
	}

	for _, cf := range p.Load.ContextFiles {
		a, ok := placed[cf.OldID]
		if !ok {
			logger.Printf("Warning: context file %s has no migrated document, leaving it in place", cf.Rel)
			p.Unmatched = append(p.Unmatched, cf)
			continue
		}
		raw, err := os.ReadFile(cf.Path)
		if err != nil {
			return fmt.Errorf("failed to read context file %s: %w", cf.Rel, err)
		}
		p.Entries = append(p.Entries, Entry{
			Kind:      OpContext,
			OldID:     cf.OldID,
			NewID:     a.NewID,
			Qualified: a.Qualified(),
			Token:     a.Token,
			OldPath:   cf.Path,
			NewPath:   p.targetPath(a, rewrite.ContextFile),
			Content:   []byte(rw.Body(string(raw))),
		})
	}

	sort.SliceStable(p.Entries, func(i, j int) bool {
		return p.Entries[i].NewPath < p.Entries[j].NewPath
	})
	return nil
}

func (p *Plan) targetPath(a hierarchy.Assignment, name string) string {
	parts := append([]string{p.Root}, a.Chain...)
	return filepath.Join(append(parts, name)...)
}

// checkTargets fails if any planned path is already on disk, planned twice
// or outside the specs directory.
func (p *Plan) checkTargets() error {
	seen := make(map[string]string, len(p.Entries))
	for _, e := range p.Entries {
		if !vcs.IsSubPath(p.Root, e.NewPath) || filepath.Clean(e.NewPath) == filepath.Clean(p.Root) {
			return fmt.Errorf("%w: %s for %s is outside %s", ErrUnsafeTarget, e.NewPath, e.OldID, p.Root)
		}
		if other, dup := seen[e.NewPath]; dup {
			return fmt.Errorf("%w: %s planned for both %s and %s", ErrTargetExists, e.NewPath, other, e.OldID)
		}
		seen[e.NewPath] = e.OldID

		if _, err := os.Lstat(e.NewPath); err == nil {
			return fmt.Errorf("%w: %s", ErrTargetExists, e.NewPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", e.NewPath, err)
		}
	}
	return nil
}

// Specs returns the number of documents the plan writes.
func (p *Plan) Specs() int {
	n := 0
	for _, e := range p.Entries {
		if e.Kind == OpSpec {
			n++
		}
	}
	return n
}

// Orphans returns the nodes that received fallback ids.
func (p *Plan) Orphans() []hierarchy.Orphan {
	if p.Resolution == nil {
		return nil
	}
	return p.Resolution.Orphans
}

package corpus

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/speclayout/specmigrate/internal/frontmatter"
)

// DefaultExclude matches paths that are never spec documents: deliverables,
// workflow notes, context companions and READMEs.
var DefaultExclude = []string{
	"**/*deliverables*/**",
	"**/*deliverables*",
	"**/*workflow*/**",
	"**/*workflow*",
	"**/*context*",
	"**/*README*",
}

var contextFileRe = regexp.MustCompile(`^(\d+)\.context\.md$`)

// Options configures Load.
type Options struct {
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the root. Nil means DefaultExclude.
	Exclude []string

	// Logger receives per-document warnings. Nil means stderr.
	Logger *log.Logger
}

// Skip records a document left out of the table.
type Skip struct {
	Path   string
	Reason error
}

// ContextFile is a `{digits}.context.md` companion keyed by old id.
type ContextFile struct {
	OldID string
	Path  string
	Rel   string
}

// Result is the outcome of Load.
type Result struct {
	Root         string
	Table        *Table
	Skipped      []Skip
	Conflicts    []Conflict
	ContextFiles []ContextFile
	Excluded     int
}

// Err returns a *ConflictError when duplicate ids were found.
func (r *Result) Err() error {
	if len(r.Conflicts) == 0 {
		return nil
	}
	return &ConflictError{Conflicts: r.Conflicts}
}

// Load scans root recursively for markdown spec documents.
//
// Documents that fail to parse or lack an id are skipped with a warning.
// Ids claimed by more than one document are reported as conflicts and none
// of the claimants are kept in the table.
func Load(root string, opts Options) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("corpus root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", absRoot)
	}

	exclude := opts.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[loader] ", log.LstdFlags)
	}

	result := &Result{Root: absRoot}
	claims := make(map[string][]*Node)
	var order []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if m := contextFileRe.FindStringSubmatch(d.Name()); m != nil {
			result.ContextFiles = append(result.ContextFiles, ContextFile{OldID: m[1], Path: path, Rel: rel})
		}
		if excluded(rel, exclude) {
			result.Excluded++
			return nil
		}

		node, err := readNode(path, rel)
		if err != nil {
			logger.Printf("Warning: skipping %s: %v", rel, err)
			result.Skipped = append(result.Skipped, Skip{Path: path, Reason: err})
			return nil
		}

		if _, seen := claims[node.OldID]; !seen {
			order = append(order, node.OldID)
		}
		claims[node.OldID] = append(claims[node.OldID], node)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", absRoot, err)
	}

	var nodes []*Node
	for _, id := range order {
		claimants := claims[id]
		if len(claimants) == 1 {
			nodes = append(nodes, claimants[0])
			continue
		}
		c := Conflict{ID: id}
		for _, n := range claimants {
			c.Paths = append(c.Paths, n.Rel)
		}
		sort.Strings(c.Paths)
		logger.Printf("Warning: id %s is claimed by %d documents: %s", id, len(c.Paths), strings.Join(c.Paths, ", "))
		result.Conflicts = append(result.Conflicts, c)
	}
	result.Table = NewTable(nodes...)
	return result, nil
}

// ReadNode parses a single document. Files without an id return ErrNoID.
func ReadNode(path string) (*Node, error) {
	return readNode(path, filepath.Base(path))
}

func readNode(path, rel string) (*Node, error) {
	// #nosec G304 - paths come from walking the configured corpus root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	meta, body, err := frontmatter.Decode(string(data))
	if err != nil {
		return nil, err
	}
	id := meta.Scalar("id")
	if id == "" {
		return nil, ErrNoID
	}
	if !safeID(id) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeID, id)
	}

	return &Node{
		OldID:    id,
		Type:     ParseType(meta.Scalar("type")),
		ParentID: meta.Scalar("parent"),
		Meta:     meta,
		Body:     body,
		Path:     path,
		Rel:      rel,
	}, nil
}

// safeID reports whether id can become part of a directory name. Fallback
// ids embed the old id verbatim.
func safeID(id string) bool {
	if id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

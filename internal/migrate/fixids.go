package migrate

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/speclayout/specmigrate/internal/frontmatter"
	"github.com/speclayout/specmigrate/internal/hierarchy"
	"github.com/speclayout/specmigrate/internal/rewrite"
)

// FixOptions configures FixIDs.
type FixOptions struct {
	Namespace uuid.UUID
	DryRun    bool
	Writer    Writer
	Logger    *log.Logger
}

// FixResult contains the outcome of FixIDs.
type FixResult struct {
	Found   int
	Updated []string

	// Skipped maps a path to why it was left alone.
	Skipped map[string]string
}

// FixIDs walks root for migrated spec.md files and replaces any id that is
// not yet a unique token. An existing unique_id is promoted; otherwise the
// token is derived from the document's directory path below root, so
// repeated runs agree.
func FixIDs(root string, opts FixOptions) (*FixResult, error) {
	if opts.Namespace == uuid.Nil {
		opts.Namespace = hierarchy.DefaultNamespace
	}
	if opts.Writer == nil {
		opts.Writer = AtomicWriter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[fix-ids] ", log.LstdFlags)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve specs directory: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("specs directory %s not found", absRoot)
	}

	matches, err := doublestar.Glob(os.DirFS(absRoot), "**/"+rewrite.SpecFile)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", absRoot, err)
	}
	sort.Strings(matches)

	res := &FixResult{Found: len(matches), Skipped: make(map[string]string)}
	for _, rel := range matches {
		path := filepath.Join(absRoot, filepath.FromSlash(rel))

		// #nosec G304 - paths come from globbing the specs directory
		raw, err := os.ReadFile(path)
		if err != nil {
			return res, fmt.Errorf("failed to read %s: %w", rel, err)
		}
		meta, body, err := frontmatter.Decode(string(raw))
		if err != nil {
			logger.Printf("Warning: skipping %s: %v", rel, err)
			res.Skipped[rel] = err.Error()
			continue
		}

		current := meta.Scalar("id")
		switch {
		case current == "":
			res.Skipped[rel] = "no id field"
			continue
		case hierarchy.IsToken(current):
			res.Skipped[rel] = "id is already a token"
			continue
		}

		token := strings.TrimSpace(meta.Scalar("unique_id"))
		if !hierarchy.IsToken(token) {
			token = hierarchy.DeriveToken(opts.Namespace, strings.TrimSuffix(rel, "/"+rewrite.SpecFile))
		}
		meta.SetString("id", token)
		meta.Delete("unique_id")

		content, err := frontmatter.Render(meta, body)
		if err != nil {
			logger.Printf("Warning: skipping %s: %v", rel, err)
			res.Skipped[rel] = err.Error()
			continue
		}
		if !opts.DryRun {
			if err := opts.Writer.WriteFile(path, []byte(content)); err != nil {
				return res, fmt.Errorf("%w: %s: %w", ErrWriteFailed, rel, err)
			}
		}
		logger.Printf("%s: id %s -> %s", rel, current, token)
		res.Updated = append(res.Updated, rel)
	}
	return res, nil
}

// Package rewrite carries the old-to-new id mapping into document
// metadata and prose.
package rewrite

import (
	"fmt"
	"log"
	"os"

	"github.com/speclayout/specmigrate/internal/corpus"
	"github.com/speclayout/specmigrate/internal/frontmatter"
)

// Fields holding a single reference. Unmapped values are kept as they are.
var scalarRefFields = []string{"parent", "epic"}

// Fields holding reference lists. Unmapped entries are dropped.
var listRefFields = []string{"children", "dependencies", "blocks", "related"}

// Ref is a reference that did not resolve through the mapping.
type Ref struct {
	OldID string
	Field string
	Value string

	// Kept is true for single-reference fields, which keep the old value,
	// and for lists with non-scalar entries, which are left unchanged.
	Kept bool
}

// Output is one rewritten document.
type Output struct {
	Meta *frontmatter.Metadata
	Body string

	// Content is the fully rendered document ready to write.
	Content string

	Unresolved []Ref
}

// Dropped returns the unresolved references that were removed.
func (o *Output) Dropped() []Ref {
	var out []Ref
	for _, r := range o.Unresolved {
		if !r.Kept {
			out = append(out, r)
		}
	}
	return out
}

// Rewriter applies one id mapping to any number of documents.
type Rewriter struct {
	ids    map[string]string
	tokens map[string]string
	body   *bodyMatcher
	logger *log.Logger
}

// New returns a Rewriter for ids (old id to new id) and tokens (old id to
// unique token). A nil logger writes to stderr.
func New(ids, tokens map[string]string, logger *log.Logger) *Rewriter {
	if logger == nil {
		logger = log.New(os.Stderr, "[rewrite] ", log.LstdFlags)
	}
	return &Rewriter{
		ids:    ids,
		tokens: tokens,
		body:   newBodyMatcher(ids),
		logger: logger,
	}
}

// Rewrite returns n's rewritten metadata, body and rendered content.
// n itself is not modified. Errors wrap ErrEncode.
func (r *Rewriter) Rewrite(n *corpus.Node) (*Output, error) {
	meta, unresolved := r.Metadata(n)
	body := r.Body(n.Body)

	content, err := frontmatter.Render(meta, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, n.OldID, err)
	}
	return &Output{Meta: meta, Body: body, Content: content, Unresolved: unresolved}, nil
}

// Metadata rewrites the reference fields of a copy of n's metadata, sets id
// to the node's unique token and removes unique_id.
func (r *Rewriter) Metadata(n *corpus.Node) (*frontmatter.Metadata, []Ref) {
	meta := n.Meta.Clone()
	var unresolved []Ref

	for _, field := range scalarRefFields {
		old := meta.Scalar(field)
		if old == "" {
			continue
		}
		if newID, ok := r.ids[old]; ok {
			meta.SetString(field, newID)
			continue
		}
		unresolved = append(unresolved, Ref{OldID: n.OldID, Field: field, Value: old, Kept: true})
		r.logger.Printf("Warning: %s: %s %s is not in the mapping, keeping it", n.OldID, field, old)
	}

	for _, field := range listRefFields {
		if !meta.IsScalarList(field) {
			unresolved = append(unresolved, Ref{OldID: n.OldID, Field: field, Value: "(structured)", Kept: true})
			r.logger.Printf("Warning: %s: %s has non-scalar entries, leaving it unchanged", n.OldID, field)
			continue
		}
		olds := meta.List(field)
		if len(olds) == 0 {
			continue
		}
		mapped := make([]string, 0, len(olds))
		for _, old := range olds {
			if newID, ok := r.ids[old]; ok {
				mapped = append(mapped, newID)
				continue
			}
			unresolved = append(unresolved, Ref{OldID: n.OldID, Field: field, Value: old})
			r.logger.Printf("Warning: %s: dropping unresolved %s reference %s", n.OldID, field, old)
		}
		meta.SetList(field, mapped)
	}

	if token, ok := r.tokens[n.OldID]; ok {
		meta.SetString("id", token)
		meta.Delete("unique_id")
	}
	return meta, unresolved
}

// Body rewrites old ids in prose.
func (r *Rewriter) Body(text string) string {
	return r.body.rewrite(text)
}

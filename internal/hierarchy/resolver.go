// Package hierarchy assigns type-prefixed ids to loaded spec documents.
//
// Numbering runs level by level (epics, features, tasks, subtasks). Each
// parent owns its own counter, so numbering restarts at 01 under every
// parent. Nodes that cannot join that chain get a fallback id embedding
// their old id, e.g. F99_42.
package hierarchy

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/speclayout/specmigrate/internal/corpus"
)

// MaxDepth bounds the ancestor chain: epic, feature, task, subtask.
const MaxDepth = 4

// Options configures Resolve.
type Options struct {
	// Namespace keys unique token derivation. uuid.Nil means DefaultNamespace.
	Namespace uuid.UUID

	// Logger receives orphan warnings. Nil means stderr.
	Logger *log.Logger
}

// Orphan records a node that received a fallback id.
type Orphan struct {
	OldID  string
	NewID  string
	Reason string
}

// Assignment is everything Resolve decided for one node.
type Assignment struct {
	OldID string
	NewID string
	Token string

	// Chain holds new ids from the root down to this node.
	Chain []string

	Fallback bool
}

// Qualified joins the chain with slashes, e.g. E01/F02/T03.
func (a Assignment) Qualified() string {
	return strings.Join(a.Chain, "/")
}

// Result is the outcome of Resolve.
type Result struct {
	// IDs maps old id to new id.
	IDs map[string]string

	// Tokens maps old id to unique token.
	Tokens map[string]string

	// Chains maps old id to its ancestor chain of new ids.
	Chains map[string][]string

	Orphans []Orphan

	// Rerooted lists nodes whose chain would exceed MaxDepth and were
	// placed at the top level instead.
	Rerooted []string

	byOld map[string]*Assignment
	order []*Assignment
}

// Get returns the assignment for an old id.
func (r *Result) Get(oldID string) (Assignment, bool) {
	a, ok := r.byOld[oldID]
	if !ok {
		return Assignment{}, false
	}
	return *a, true
}

// Assignments returns all assignments ordered by qualified id.
func (r *Result) Assignments() []Assignment {
	out := make([]Assignment, len(r.order))
	for i, a := range r.order {
		out[i] = *a
	}
	return out
}

// Resolve assigns new ids, unique tokens and ancestor chains to every node
// in table. A parent cycle returns a *CycleError before anything is assigned.
func Resolve(table *corpus.Table, opts Options) (*Result, error) {
	if opts.Namespace == uuid.Nil {
		opts.Namespace = DefaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[resolver] ", log.LstdFlags)
	}

	if err := detectCycles(table); err != nil {
		return nil, err
	}

	r := &Result{
		IDs:    make(map[string]string, table.Len()),
		Tokens: make(map[string]string, table.Len()),
		Chains: make(map[string][]string, table.Len()),
		byOld:  make(map[string]*Assignment, table.Len()),
	}

	scoped := assignScoped(table)
	for _, n := range table.Nodes() {
		a := &Assignment{OldID: n.OldID}
		if id, ok := scoped[n.OldID]; ok {
			a.NewID = id
		} else {
			a.NewID = fmt.Sprintf("%s99_%s", n.Type.Prefix(), n.OldID)
			a.Fallback = true
			reason := orphanReason(table, n)
			r.Orphans = append(r.Orphans, Orphan{OldID: n.OldID, NewID: a.NewID, Reason: reason})
			logger.Printf("Warning: %s (%s) gets fallback id %s: %s", n.OldID, n.Type, a.NewID, reason)
		}
		r.byOld[n.OldID] = a
		r.IDs[n.OldID] = a.NewID
	}

	assignTokens(table, r, opts.Namespace, logger)

	if err := r.buildChains(table, logger); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(r.order))
	for _, a := range r.order {
		q := a.Qualified()
		if other, dup := seen[q]; dup {
			return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateNewID, other, a.OldID, q)
		}
		seen[q] = a.OldID
	}
	return r, nil
}

// assignScoped numbers every node that sits on the epic > feature > task >
// subtask chain under a parent that is itself on the chain.
func assignScoped(table *corpus.Table) map[string]string {
	children := make(map[string][]*corpus.Node)
	var epics []*corpus.Node
	for _, n := range table.Nodes() {
		switch {
		case n.Type == corpus.TypeEpic:
			epics = append(epics, n)
		case n.Type.ParentType() != "" && n.ParentID != "":
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}

	ids := make(map[string]string, table.Len())
	counters := make(map[string]int)

	var assign func(n *corpus.Node)
	assign = func(n *corpus.Node) {
		// table.Nodes() is already sorted, so children keep that order.
		for _, child := range children[n.OldID] {
			if child.Type.ParentType() != n.Type {
				continue
			}
			counters[n.OldID]++
			ids[child.OldID] = fmt.Sprintf("%s%02d", child.Type.Prefix(), counters[n.OldID])
			assign(child)
		}
	}

	for i, epic := range epics {
		ids[epic.OldID] = fmt.Sprintf("%s%02d", epic.Type.Prefix(), i+1)
		assign(epic)
	}
	return ids
}

func orphanReason(table *corpus.Table, n *corpus.Node) string {
	want := n.Type.ParentType()
	if want == "" {
		return fmt.Sprintf("type %s is outside the epic/feature/task/subtask chain", n.Type)
	}
	if n.ParentID == "" {
		return "no parent declared"
	}
	parent, ok := table.Get(n.ParentID)
	if !ok {
		return fmt.Sprintf("parent %s not loaded", n.ParentID)
	}
	if parent.Type != want {
		return fmt.Sprintf("parent %s is a %s, a %s needs a %s", parent.OldID, parent.Type, n.Type, want)
	}
	return fmt.Sprintf("parent %s has a fallback id", parent.OldID)
}

// assignTokens promotes an existing unique_id when it is free and derives a
// token from the old id otherwise.
func assignTokens(table *corpus.Table, r *Result, ns uuid.UUID, logger *log.Logger) {
	used := make(map[string]string, table.Len())
	for _, n := range table.Nodes() {
		token := strings.TrimSpace(n.Meta.Scalar("unique_id"))
		if token != "" {
			if owner, taken := used[token]; taken {
				logger.Printf("Warning: unique_id %s of %s already used by %s, deriving a new token", token, n.OldID, owner)
				token = ""
			}
		}
		if token == "" {
			token = DeriveToken(ns, n.OldID)
			for i := 1; used[token] != ""; i++ {
				token = DeriveToken(ns, fmt.Sprintf("%s#%d", n.OldID, i))
			}
		}
		used[token] = n.OldID
		r.byOld[n.OldID].Token = token
		r.Tokens[n.OldID] = token
	}
}

func (r *Result) buildChains(table *corpus.Table, logger *log.Logger) error {
	visiting := make(map[string]bool)

	var chain func(n *corpus.Node) ([]string, error)
	chain = func(n *corpus.Node) ([]string, error) {
		a := r.byOld[n.OldID]
		if a.Chain != nil {
			return a.Chain, nil
		}
		if visiting[n.OldID] {
			return nil, &CycleError{Members: []string{n.OldID}}
		}
		visiting[n.OldID] = true
		defer delete(visiting, n.OldID)

		parent, ok := table.Get(n.ParentID)
		if n.Type == corpus.TypeEpic || n.ParentID == "" || !ok {
			a.Chain = []string{a.NewID}
			return a.Chain, nil
		}

		up, err := chain(parent)
		if err != nil {
			return nil, err
		}
		if len(up) >= MaxDepth {
			logger.Printf("Warning: %s would sit below depth %d under %s, placing it at the top level",
				n.OldID, MaxDepth, strings.Join(up, "/"))
			r.Rerooted = append(r.Rerooted, n.OldID)
			a.Chain = []string{a.NewID}
			return a.Chain, nil
		}
		a.Chain = append(append(make([]string, 0, len(up)+1), up...), a.NewID)
		return a.Chain, nil
	}

	for _, n := range table.Nodes() {
		c, err := chain(n)
		if err != nil {
			return err
		}
		r.Chains[n.OldID] = c
		r.order = append(r.order, r.byOld[n.OldID])
	}

	sort.SliceStable(r.order, func(i, j int) bool {
		return r.order[i].Qualified() < r.order[j].Qualified()
	})
	return nil
}

// detectCycles walks every parent chain once. A node already proven to end
// at a root is never walked again.
func detectCycles(table *corpus.Table) error {
	done := make(map[string]bool, table.Len())
	for _, start := range table.IDs() {
		var path []string
		onPath := make(map[string]int)
		id := start
		for {
			if done[id] {
				break
			}
			if at, seen := onPath[id]; seen {
				return &CycleError{Members: append([]string(nil), path[at:]...)}
			}
			onPath[id] = len(path)
			path = append(path, id)

			n, _ := table.Get(id)
			if n.ParentID == "" {
				break
			}
			if _, ok := table.Get(n.ParentID); !ok {
				break
			}
			id = n.ParentID
		}
		for _, p := range path {
			done[p] = true
		}
	}
	return nil
}

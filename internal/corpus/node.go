// Package corpus loads spec documents from a directory tree into memory.
package corpus

import (
	"sort"
	"strconv"
	"strings"

	"github.com/speclayout/specmigrate/internal/frontmatter"
)

// Type is the declared kind of a spec document.
type Type string

const (
	TypeEpic    Type = "epic"
	TypeFeature Type = "feature"
	TypeTask    Type = "task"
	TypeSubtask Type = "subtask"
	TypeBug     Type = "bug"
	TypeSpike   Type = "spike"
)

var prefixes = map[Type]string{
	TypeEpic:    "E",
	TypeFeature: "F",
	TypeTask:    "T",
	TypeSubtask: "S",
	TypeBug:     "B",
	TypeSpike:   "K",
}

// ParseType normalizes a frontmatter type value. Missing types default to task.
func ParseType(s string) Type {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeTask
	}
	return Type(s)
}

// Prefix returns the single-letter id prefix. Unknown types use the task prefix.
func (t Type) Prefix() string {
	if p, ok := prefixes[t]; ok {
		return p
	}
	return prefixes[TypeTask]
}

// Level is the type's position in the epic > feature > task > subtask chain,
// starting at 1. Types outside the chain return 0.
func (t Type) Level() int {
	switch t {
	case TypeEpic:
		return 1
	case TypeFeature:
		return 2
	case TypeTask:
		return 3
	case TypeSubtask:
		return 4
	}
	return 0
}

// ParentType is the type a node of this type must hang under to join the
// chain. Epics and off-chain types return "".
func (t Type) ParentType() Type {
	switch t {
	case TypeFeature:
		return TypeEpic
	case TypeTask:
		return TypeFeature
	case TypeSubtask:
		return TypeTask
	}
	return ""
}

// Node is one loaded spec document.
type Node struct {
	// OldID is the document's id as found in its frontmatter.
	OldID string

	Type Type

	// ParentID is the declared parent old id, "" when absent.
	ParentID string

	Meta *frontmatter.Metadata
	Body string

	// Path is the absolute source path; Rel is relative to the corpus root.
	Path string
	Rel  string
}

// Table indexes loaded nodes by old id.
type Table struct {
	nodes map[string]*Node
}

// NewTable builds a table from nodes. Callers must ensure ids are unique;
// later duplicates replace earlier ones.
func NewTable(nodes ...*Node) *Table {
	t := &Table{nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		t.nodes[n.OldID] = n
	}
	return t
}

// Get returns the node with the given old id.
func (t *Table) Get(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (t *Table) Len() int {
	return len(t.nodes)
}

// IDs returns all old ids in CompareIDs order.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Nodes returns all nodes in CompareIDs order of their old ids.
func (t *Table) Nodes() []*Node {
	ids := t.IDs()
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id]
	}
	return out
}

// CompareIDs orders purely numeric ids by value ahead of all other ids,
// which sort lexicographically.
func CompareIDs(a, b string) int {
	an, aNum := numericID(a)
	bn, bNum := numericID(b)
	switch {
	case aNum && bNum:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a, b)
}

// SortIDs sorts ids in place by CompareIDs.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return CompareIDs(ids[i], ids[j]) < 0
	})
}

func numericID(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

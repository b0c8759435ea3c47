package frontmatter

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field is one top-level frontmatter entry. Value keeps the parsed YAML node
// so untouched fields re-encode with their original style and tags.
type Field struct {
	Key   string
	Value *yaml.Node
}

// Metadata is an ordered mapping of frontmatter fields.
// The zero value is an empty mapping ready to use.
type Metadata struct {
	fields []Field
}

// NewMetadata returns an empty mapping.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// FromNode builds Metadata from a YAML mapping node, keeping key order.
func FromNode(node *yaml.Node) (*Metadata, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return NewMetadata(), nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter is not a mapping (yaml kind %d)", node.Kind)
	}

	m := &Metadata{fields: make([]Field, 0, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		clearComments(value)
		m.put(key, value)
	}
	return m, nil
}

// Len returns the number of fields.
func (m *Metadata) Len() int {
	return len(m.fields)
}

// Keys returns field names in order.
func (m *Metadata) Keys() []string {
	keys := make([]string, len(m.fields))
	for i, f := range m.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns the ordered fields. The slice must not be modified.
func (m *Metadata) Fields() []Field {
	return m.fields
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	return m.index(key) >= 0
}

// Node returns the raw YAML node for key.
func (m *Metadata) Node(key string) (*yaml.Node, bool) {
	i := m.index(key)
	if i < 0 {
		return nil, false
	}
	return m.fields[i].Value, true
}

// Scalar returns the string form of a scalar field. Null, missing and
// non-scalar values yield "".
func (m *Metadata) Scalar(key string) string {
	node, ok := m.Node(key)
	if !ok || node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

// List returns the scalar elements of a sequence field. A scalar field is
// treated as a one-element list; null and missing fields yield nil.
func (m *Metadata) List(key string) []string {
	node, ok := m.Node(key)
	if !ok {
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			return nil
		}
		return []string{node.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode && item.Tag != "!!null" {
				out = append(out, item.Value)
			}
		}
		return out
	}
	return nil
}

// IsScalarList reports whether List(key) covers the whole field: the field
// is missing, a scalar, or a sequence of scalars. Mappings and sequences
// holding mappings or nested sequences are not.
func (m *Metadata) IsScalarList(key string) bool {
	node, ok := m.Node(key)
	if !ok {
		return true
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return true
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return false
			}
		}
		return true
	}
	return false
}

// Set stores value under key, keeping the key's position if it already
// exists and appending otherwise.
func (m *Metadata) Set(key string, value any) error {
	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encode field %s: %w", key, err)
	}
	m.put(key, node)
	return nil
}

// SetString stores a plain string scalar.
func (m *Metadata) SetString(key, value string) {
	m.put(key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

// SetList stores a block sequence of string scalars.
func (m *Metadata) SetList(key string, values []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
	}
	m.put(key, seq)
}

// Delete removes key. Missing keys are ignored.
func (m *Metadata) Delete(key string) {
	i := m.index(key)
	if i < 0 {
		return
	}
	m.fields = append(m.fields[:i], m.fields[i+1:]...)
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	out := &Metadata{fields: make([]Field, len(m.fields))}
	for i, f := range m.fields {
		out.fields[i] = Field{Key: f.Key, Value: cloneNode(f.Value)}
	}
	return out
}

// ToMap decodes every field into plain Go values.
func (m *Metadata) ToMap() (map[string]any, error) {
	out := make(map[string]any, len(m.fields))
	for _, f := range m.fields {
		var v any
		if err := f.Value.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", f.Key, err)
		}
		out[f.Key] = v
	}
	return out, nil
}

func (m *Metadata) index(key string) int {
	for i, f := range m.fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

func (m *Metadata) put(key string, value *yaml.Node) {
	if i := m.index(key); i >= 0 {
		m.fields[i].Value = value
		return
	}
	m.fields = append(m.fields, Field{Key: key, Value: value})
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

func clearComments(n *yaml.Node) {
	n.HeadComment, n.LineComment, n.FootComment = "", "", ""
	for _, child := range n.Content {
		clearComments(child)
	}
}

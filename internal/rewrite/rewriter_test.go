package rewrite

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speclayout/specmigrate/internal/corpus"
	"github.com/speclayout/specmigrate/internal/frontmatter"
	"gopkg.in/yaml.v3"
)

func decodeNode(t *testing.T, oldID, raw string) *corpus.Node {
	t.Helper()
	meta, body, err := frontmatter.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return &corpus.Node{OldID: oldID, Type: corpus.ParseType(meta.Scalar("type")), ParentID: meta.Scalar("parent"), Meta: meta, Body: body}
}

func TestRewrite_Fields(t *testing.T) {
	ids := map[string]string{"1000": "E01", "1001": "F01", "1013": "T03", "1014": "T04"}
	tokens := map[string]string{"1013": "a1b2c3d4"}
	var buf bytes.Buffer
	r := New(ids, tokens, log.New(&buf, "", 0))

	n := decodeNode(t, "1013", `---
id: 1013
unique_id: a1b2c3d4
title: Order routing
type: task
parent: 1001
epic: 1000
dependencies: [1014, 777]
blocks: 1014
related: []
status: open
---
Blocked by 1014.md.
`)

	out, err := r.Rewrite(n)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, body, err := frontmatter.Decode(out.Content)
	if err != nil {
		t.Fatalf("Decode(rewritten) error = %v", err)
	}
	gotMap, err := got.ToMap()
	if err != nil {
		t.Fatalf("ToMap() error = %v", err)
	}
	want := map[string]any{
		"id":           "a1b2c3d4",
		"title":        "Order routing",
		"type":         "task",
		"parent":       "F01",
		"epic":         "E01",
		"dependencies": []any{"T04"},
		"blocks":       []any{"T04"},
		"related":      []any{},
		"status":       "open",
	}
	if diff := cmp.Diff(want, gotMap); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if body != "Blocked by T04/spec.md.\n" {
		t.Errorf("body = %q", body)
	}

	if diff := cmp.Diff([]Ref{{OldID: "1013", Field: "dependencies", Value: "777"}}, out.Dropped()); diff != "" {
		t.Errorf("Dropped() mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "Warning: 1013: dropping unresolved dependencies reference 777") {
		t.Errorf("log = %q", buf.String())
	}

	// The source node is untouched.
	if n.Meta.Scalar("parent") != "1001" || !n.Meta.Has("unique_id") {
		t.Errorf("source metadata was modified")
	}
}

func TestRewrite_UnknownParentKept(t *testing.T) {
	r := New(map[string]string{"42": "F99_42"}, map[string]string{"42": "0badf00d"}, log.New(io.Discard, "", 0))
	n := decodeNode(t, "42", "---\nid: 42\ntype: feature\nparent: 99\n---\n")

	out, err := r.Rewrite(n)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if got := out.Meta.Scalar("parent"); got != "99" {
		t.Errorf("parent = %q, want 99 kept", got)
	}
	if len(out.Unresolved) != 1 || !out.Unresolved[0].Kept {
		t.Errorf("Unresolved = %+v, want one kept parent", out.Unresolved)
	}
	if len(out.Dropped()) != 0 {
		t.Errorf("Dropped() = %+v, want none", out.Dropped())
	}
	if got := out.Meta.Scalar("id"); got != "0badf00d" {
		t.Errorf("id = %q", got)
	}
}

func TestRewrite_StructuredListLeftUnchanged(t *testing.T) {
	var buf bytes.Buffer
	r := New(map[string]string{"5": "E01", "6": "E02"}, nil, log.New(&buf, "", 0))
	n := decodeNode(t, "5", `---
id: 5
type: epic
dependencies:
  - 6
  - id: 6
    note: hard dependency
related: [6]
---
`)

	out, err := r.Rewrite(n)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	got, err := out.Meta.ToMap()
	if err != nil {
		t.Fatalf("ToMap() error = %v", err)
	}
	wantDeps := []any{6, map[string]any{"id": 6, "note": "hard dependency"}}
	if diff := cmp.Diff(wantDeps, got["dependencies"]); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"E02"}, got["related"]); diff != "" {
		t.Errorf("related mismatch (-want +got):\n%s", diff)
	}

	want := []Ref{{OldID: "5", Field: "dependencies", Value: "(structured)", Kept: true}}
	if diff := cmp.Diff(want, out.Unresolved); diff != "" {
		t.Errorf("Unresolved mismatch (-want +got):\n%s", diff)
	}
	if len(out.Dropped()) != 0 {
		t.Errorf("Dropped() = %+v, want none", out.Dropped())
	}
	if !strings.Contains(buf.String(), "dependencies has non-scalar entries") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestRewrite_KeepsFieldOrder(t *testing.T) {
	r := New(map[string]string{"7": "E01"}, map[string]string{"7": "cafebabe"}, log.New(io.Discard, "", 0))
	n := decodeNode(t, "7", "---\ntitle: First\nid: 7\nunique_id: cafebabe\nowner: me\n---\n")

	out, err := r.Rewrite(n)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if diff := cmp.Diff([]string{"title", "id", "owner"}, out.Meta.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestRewrite_EncodeFailure(t *testing.T) {
	meta, err := frontmatter.FromNode(&yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "id"},
			{Kind: yaml.ScalarNode, Value: "5"},
			{Kind: yaml.ScalarNode, Value: "broken"},
			{Kind: yaml.Kind(99), Value: "?"},
		},
	})
	if err != nil {
		t.Fatalf("FromNode() error = %v", err)
	}

	r := New(map[string]string{"5": "T01"}, nil, log.New(io.Discard, "", 0))
	_, err = r.Rewrite(&corpus.Node{OldID: "5", Type: corpus.TypeTask, Meta: meta})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("Rewrite() error = %v, want ErrEncode", err)
	}
}

package hierarchy

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/speclayout/specmigrate/internal/corpus"
	"github.com/speclayout/specmigrate/internal/frontmatter"
)

func node(id string, typ corpus.Type, parent string) *corpus.Node {
	meta := frontmatter.NewMetadata()
	meta.SetString("id", id)
	meta.SetString("type", string(typ))
	if parent != "" {
		meta.SetString("parent", parent)
	}
	return &corpus.Node{OldID: id, Type: typ, ParentID: parent, Meta: meta}
}

func quiet() Options {
	return Options{Logger: log.New(io.Discard, "", 0)}
}

func TestResolve_NumericSortAndScopedCounters(t *testing.T) {
	table := corpus.NewTable(
		node("3", corpus.TypeEpic, ""),
		node("1", corpus.TypeEpic, ""),
		node("30", corpus.TypeFeature, "3"),
		node("10", corpus.TypeFeature, "1"),
	)

	res, err := Resolve(table, quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := map[string]string{"1": "E01", "3": "E02", "10": "F01", "30": "F01"}
	if diff := cmp.Diff(want, res.IDs); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"E02", "F01"}, res.Chains["30"]); diff != "" {
		t.Errorf("chain of 30 mismatch (-want +got):\n%s", diff)
	}
	if len(res.Orphans) != 0 {
		t.Errorf("Orphans = %+v, want none", res.Orphans)
	}
}

func TestResolve_FullChain(t *testing.T) {
	table := corpus.NewTable(
		node("1000", corpus.TypeEpic, ""),
		node("1001", corpus.TypeFeature, "1000"),
		node("1002", corpus.TypeFeature, "1000"),
		node("1011", corpus.TypeTask, "1002"),
		node("1012", corpus.TypeTask, "1002"),
		node("1013", corpus.TypeTask, "1002"),
		node("2000", corpus.TypeSubtask, "1013"),
	)

	res, err := Resolve(table, quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	a, ok := res.Get("2000")
	if !ok {
		t.Fatal("no assignment for 2000")
	}
	if got := a.Qualified(); got != "E01/F02/T03/S01" {
		t.Errorf("Qualified() = %q, want E01/F02/T03/S01", got)
	}
	if res.IDs["1013"] != "T03" {
		t.Errorf("1013 -> %q, want T03", res.IDs["1013"])
	}
}

func TestResolve_OrphanFallback(t *testing.T) {
	var buf bytes.Buffer
	table := corpus.NewTable(
		node("1", corpus.TypeEpic, ""),
		node("42", corpus.TypeFeature, "99"),
	)

	res, err := Resolve(table, Options{Logger: log.New(&buf, "", 0)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if res.IDs["42"] != "F99_42" {
		t.Errorf("42 -> %q, want F99_42", res.IDs["42"])
	}
	if len(res.Orphans) != 1 || res.Orphans[0].OldID != "42" {
		t.Fatalf("Orphans = %+v, want one for 42", res.Orphans)
	}
	if !strings.Contains(res.Orphans[0].Reason, "99 not loaded") {
		t.Errorf("Reason = %q", res.Orphans[0].Reason)
	}
	if !strings.Contains(buf.String(), "Warning: 42") {
		t.Errorf("log = %q, want orphan warning", buf.String())
	}
	if diff := cmp.Diff([]string{"F99_42"}, res.Chains["42"]); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_OrphanCases(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []*corpus.Node
		id     string
		want   string
		reason string
	}{
		{
			name:   "no parent declared",
			nodes:  []*corpus.Node{node("1", corpus.TypeEpic, ""), node("5", corpus.TypeTask, "")},
			id:     "5",
			want:   "T99_5",
			reason: "no parent declared",
		},
		{
			name:   "wrong parent type",
			nodes:  []*corpus.Node{node("1", corpus.TypeEpic, ""), node("5", corpus.TypeTask, "1")},
			id:     "5",
			want:   "T99_5",
			reason: "needs a feature",
		},
		{
			name:   "bug",
			nodes:  []*corpus.Node{node("1", corpus.TypeEpic, ""), node("7", corpus.TypeBug, "1")},
			id:     "7",
			want:   "B99_7",
			reason: "outside",
		},
		{
			name:   "spike",
			nodes:  []*corpus.Node{node("8", corpus.TypeSpike, "")},
			id:     "8",
			want:   "K99_8",
			reason: "outside",
		},
		{
			name: "under a fallback parent",
			nodes: []*corpus.Node{
				node("2", corpus.TypeFeature, ""),
				node("3", corpus.TypeTask, "2"),
			},
			id:     "3",
			want:   "T99_3",
			reason: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(corpus.NewTable(tt.nodes...), quiet())
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := res.IDs[tt.id]; got != tt.want {
				t.Errorf("%s -> %q, want %q", tt.id, got, tt.want)
			}
			var reason string
			for _, o := range res.Orphans {
				if o.OldID == tt.id {
					reason = o.Reason
				}
			}
			if !strings.Contains(reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", reason, tt.reason)
			}
		})
	}
}

func TestResolve_FallbackAttachesUnderParent(t *testing.T) {
	table := corpus.NewTable(
		node("1", corpus.TypeEpic, ""),
		node("7", corpus.TypeBug, "1"),
	)
	res, err := Resolve(table, quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff([]string{"E01", "B99_7"}, res.Chains["7"]); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_DepthCap(t *testing.T) {
	table := corpus.NewTable(
		node("1", corpus.TypeEpic, ""),
		node("2", corpus.TypeFeature, "1"),
		node("3", corpus.TypeTask, "2"),
		node("4", corpus.TypeSubtask, "3"),
		node("5", corpus.TypeSubtask, "4"),
	)
	res, err := Resolve(table, quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	for id, chain := range res.Chains {
		if len(chain) > MaxDepth {
			t.Errorf("chain of %s has %d levels: %v", id, len(chain), chain)
		}
	}
	if diff := cmp.Diff([]string{"E01", "F01", "T01", "S01"}, res.Chains["4"]); diff != "" {
		t.Errorf("chain of 4 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S99_5"}, res.Chains["5"]); diff != "" {
		t.Errorf("chain of 5 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"5"}, res.Rerooted); diff != "" {
		t.Errorf("Rerooted mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Cycle(t *testing.T) {
	table := corpus.NewTable(
		node("1", corpus.TypeEpic, ""),
		node("10", corpus.TypeFeature, "12"),
		node("11", corpus.TypeTask, "10"),
		node("12", corpus.TypeSubtask, "11"),
	)

	_, err := Resolve(table, quiet())
	if !errors.Is(err, ErrBrokenHierarchy) {
		t.Fatalf("Resolve() error = %v, want ErrBrokenHierarchy", err)
	}
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("error %T is not a *CycleError", err)
	}
	if diff := cmp.Diff([]string{"10", "12", "11"}, cycle.Members); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_SelfParent(t *testing.T) {
	table := corpus.NewTable(node("5", corpus.TypeTask, "5"))
	if _, err := Resolve(table, quiet()); !errors.Is(err, ErrBrokenHierarchy) {
		t.Fatalf("Resolve() error = %v, want ErrBrokenHierarchy", err)
	}
}

func TestResolve_DeterministicAndInjective(t *testing.T) {
	build := func() *corpus.Table {
		return corpus.NewTable(
			node("1", corpus.TypeEpic, ""),
			node("2", corpus.TypeEpic, ""),
			node("10", corpus.TypeFeature, "1"),
			node("11", corpus.TypeFeature, "1"),
			node("20", corpus.TypeFeature, "2"),
			node("100", corpus.TypeTask, "10"),
			node("101", corpus.TypeTask, "20"),
			node("abc", corpus.TypeTask, "11"),
			node("x", corpus.TypeBug, ""),
		)
	}

	first, err := Resolve(build(), quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := Resolve(build(), quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if diff := cmp.Diff(first.Chains, second.Chains); diff != "" {
		t.Errorf("chains differ between runs:\n%s", diff)
	}
	if diff := cmp.Diff(first.Tokens, second.Tokens); diff != "" {
		t.Errorf("tokens differ between runs:\n%s", diff)
	}

	seen := make(map[string]string)
	for _, a := range first.Assignments() {
		if other, dup := seen[a.Qualified()]; dup {
			t.Errorf("%s and %s share %s", other, a.OldID, a.Qualified())
		}
		seen[a.Qualified()] = a.OldID
	}
	if len(seen) != 9 {
		t.Errorf("got %d assignments, want 9", len(seen))
	}
}

func TestResolve_Tokens(t *testing.T) {
	promoted := node("1", corpus.TypeEpic, "")
	promoted.Meta.SetString("unique_id", "deadbeef")
	stolen := node("2", corpus.TypeEpic, "")
	stolen.Meta.SetString("unique_id", "deadbeef")
	plain := node("3", corpus.TypeEpic, "")

	res, err := Resolve(corpus.NewTable(promoted, stolen, plain), quiet())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if res.Tokens["1"] != "deadbeef" {
		t.Errorf("token of 1 = %q, want promoted deadbeef", res.Tokens["1"])
	}
	if res.Tokens["2"] != DeriveToken(DefaultNamespace, "2") {
		t.Errorf("token of 2 = %q, want derived", res.Tokens["2"])
	}
	if res.Tokens["3"] != DeriveToken(DefaultNamespace, "3") {
		t.Errorf("token of 3 = %q, want derived", res.Tokens["3"])
	}
	for id, tok := range res.Tokens {
		if !IsToken(tok) {
			t.Errorf("token of %s = %q, not a token", id, tok)
		}
	}
}

func TestResolve_TokenIgnoresHierarchy(t *testing.T) {
	ns := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("example.test"))
	opts := quiet()
	opts.Namespace = ns

	a, err := Resolve(corpus.NewTable(node("1", corpus.TypeEpic, ""), node("5", corpus.TypeFeature, "1")), opts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, err := Resolve(corpus.NewTable(node("5", corpus.TypeFeature, "")), opts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.IDs["5"] == b.IDs["5"] {
		t.Fatalf("new ids unexpectedly equal: %s", a.IDs["5"])
	}
	if a.Tokens["5"] != b.Tokens["5"] {
		t.Errorf("tokens differ: %s vs %s", a.Tokens["5"], b.Tokens["5"])
	}
}

func TestIsNewID(t *testing.T) {
	tests := map[string]bool{
		"E01":    true,
		"F12":    true,
		"T99_42": true,
		"K99_a":  true,
		"1013":   false,
		"X01":    false,
		"E1":     false,
		"":       false,
	}
	for in, want := range tests {
		if got := IsNewID(in); got != want {
			t.Errorf("IsNewID(%q) = %v, want %v", in, got, want)
		}
	}
}

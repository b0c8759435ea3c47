package frontmatter

// section groups related frontmatter fields under a banner comment.
type section struct {
	name   string
	fields []string
}

// sections are listed in precedence order. Encode emits each banner at most
// once and never goes back to an earlier section.
var sections = []section{
	{name: "IDENTIFICATION", fields: []string{"id", "unique_id", "title", "type"}},
	{name: "HIERARCHY", fields: []string{"parent", "children", "epic"}},
	{name: "WORKFLOW", fields: []string{"status", "priority", "assignee", "phase", "estimate"}},
	{name: "TRACKING", fields: []string{"created", "updated", "started", "completed", "due"}},
	{name: "DEPENDENCIES", fields: []string{"dependencies", "blocks", "related"}},
	{name: "IMPLEMENTATION", fields: []string{"pull_requests", "branch", "commits", "files", "tests"}},
	{name: "METADATA", fields: []string{"tags", "labels", "owner", "version"}},
}

var sectionIndex = func() map[string]int {
	idx := make(map[string]int)
	for i, s := range sections {
		for _, f := range s.fields {
			idx[f] = i
		}
	}
	return idx
}()

const (
	headerRule    = "# ============================================================================"
	headerTitle   = "# SPEC METADATA - This entire frontmatter section contains the spec metadata"
	idLineComment = " # Unique identifier (never changes)"
)

func banner(i int) string {
	return "# === " + sections[i].name + " ==="
}

package frontmatter

import "strings"

// stripComments drops full-line comments and truncates trailing comments.
//
// A '#' only starts a comment when it is outside quotes and at the start of
// the line or after whitespace, matching YAML. Block scalar content (after a
// `key: |` or `key: >` line) is kept as written.
func stripComments(block string) string {
	lines := strings.Split(block, "\n")
	out := make([]string, 0, len(lines))

	blockIndent := -1
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")

		if blockIndent >= 0 {
			if strings.TrimSpace(line) == "" || indentOf(line) > blockIndent {
				out = append(out, line)
				continue
			}
			blockIndent = -1
		}

		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		line = cutComment(line)
		if opensBlockScalar(line) {
			blockIndent = indentOf(line)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func cutComment(line string) string {
	if !strings.Contains(line, "#") {
		return line
	}

	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '"' && c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

func opensBlockScalar(line string) bool {
	trimmed := strings.TrimRight(line, " \t")
	i := strings.LastIndexAny(trimmed, " \t")
	if i < 0 {
		return false
	}
	indicator := trimmed[i+1:]
	if indicator == "" || (indicator[0] != '|' && indicator[0] != '>') {
		return false
	}
	for _, c := range indicator[1:] {
		if c != '-' && c != '+' && (c < '1' || c > '9') {
			return false
		}
	}
	before := strings.TrimRight(trimmed[:i], " \t")
	return strings.HasSuffix(before, ":") || strings.HasSuffix(before, "-")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

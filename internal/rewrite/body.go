package rewrite

import (
	"regexp"
	"sort"
	"strings"
)

const (
	specSuffix    = ".md"
	contextSuffix = ".context.md"

	// SpecFile and ContextFile are the fixed names inside a node directory.
	SpecFile    = "spec.md"
	ContextFile = "context.md"
)

// bodyMatcher rewrites old ids in prose in one left-to-right pass, so a
// substituted new id is never matched again by a later pair.
type bodyMatcher struct {
	ids map[string]string
	re  *regexp.Regexp
}

func newBodyMatcher(ids map[string]string) *bodyMatcher {
	m := &bodyMatcher{ids: ids}
	if len(ids) == 0 {
		return m
	}

	olds := make([]string, 0, len(ids))
	for old := range ids {
		if old != "" {
			olds = append(olds, old)
		}
	}
	// Longest first so an id is never shadowed by one of its prefixes.
	sort.Slice(olds, func(i, j int) bool {
		if len(olds[i]) != len(olds[j]) {
			return len(olds[i]) > len(olds[j])
		}
		return olds[i] < olds[j]
	})
	for i, old := range olds {
		olds[i] = regexp.QuoteMeta(old)
	}
	m.re = regexp.MustCompile(`\b(?:` + strings.Join(olds, "|") + `)\b`)
	return m
}

// rewrite replaces whole-token old ids. "{old}.md" becomes "{new}/spec.md",
// "{old}.context.md" becomes "{new}/context.md", and an id followed by any
// other file extension is left alone.
func (m *bodyMatcher) rewrite(text string) string {
	if m.re == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range m.re.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		newID := m.ids[text[start:end]]
		rest := text[end:]

		var repl string
		switch {
		case hasExtension(rest, contextSuffix):
			repl = newID + "/" + ContextFile
			end += len(contextSuffix)
		case hasExtension(rest, specSuffix):
			repl = newID + "/" + SpecFile
			end += len(specSuffix)
		case otherExtension(rest):
			continue
		default:
			repl = newID
		}

		b.WriteString(text[last:start])
		b.WriteString(repl)
		last = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// hasExtension reports whether rest starts with ext as a complete suffix,
// so ".md" does not claim ".mdx".
func hasExtension(rest, ext string) bool {
	if !strings.HasPrefix(rest, ext) {
		return false
	}
	tail := rest[len(ext):]
	return tail == "" || !isWordByte(tail[0])
}

func otherExtension(rest string) bool {
	return len(rest) >= 2 && rest[0] == '.' && isLetter(rest[1])
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

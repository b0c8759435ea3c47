// Package frontmatter reads and writes the YAML metadata block at the top of
// spec documents.
//
// A document looks like:
//
//	---
//	id: 1013
//	type: task
//	parent: 1001
//	---
//	# Body markdown
//
// Decode strips comments before parsing so that Encode can lay the banner
// comments back out in a canonical form.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes the metadata block.
const Delimiter = "---"

var (
	// ErrParse is returned when a metadata block exists but cannot be parsed.
	ErrParse = errors.New("frontmatter parse failed")

	// ErrUnterminated is returned when the opening delimiter has no match.
	ErrUnterminated = errors.New("frontmatter block is not terminated")
)

// HasBlock reports whether raw starts with a metadata block delimiter line.
func HasBlock(raw string) bool {
	return strings.HasPrefix(raw, Delimiter+"\n") || strings.HasPrefix(raw, Delimiter+"\r\n")
}

// Decode splits raw into metadata and body.
//
// Text without a leading delimiter is not an error: it yields empty metadata
// and the full text as body. When the block cannot be parsed, Decode returns
// empty metadata, the unchanged text and an error wrapping ErrParse.
func Decode(raw string) (*Metadata, string, error) {
	if !HasBlock(raw) {
		return NewMetadata(), raw, nil
	}

	block, body, ok := split(raw)
	if !ok {
		return NewMetadata(), raw, fmt.Errorf("%w: %w", ErrParse, ErrUnterminated)
	}

	meta, err := parse(stripComments(block))
	if err != nil {
		// Second chance: neutralise every comment marker and parse verbatim.
		neutral := strings.ReplaceAll(block, "# ", "@ ")
		neutral = strings.ReplaceAll(neutral, "#", "")
		meta, err2 := parse(neutral)
		if err2 != nil {
			return NewMetadata(), raw, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return meta, body, nil
	}
	return meta, body, nil
}

// Encode serializes meta as a delimited block with section banners. The
// result always starts and ends with a delimiter line.
func Encode(meta *Metadata) (string, error) {
	lines := []string{
		Delimiter,
		headerRule,
		headerTitle,
		headerRule,
		"",
		banner(0),
	}

	current := 0
	keep := false
	for _, f := range meta.Fields() {
		text, err := encodeField(f)
		if err != nil {
			return "", err
		}

		if s, ok := sectionIndex[f.Key]; ok && s > current {
			// A blank line after a "|+" scalar would become part of its value.
			if keep {
				lines = append(lines, banner(s))
			} else {
				lines = append(lines, "", banner(s))
			}
			current = s
		}

		fieldLines := strings.Split(text, "\n")
		if f.Key == "id" && len(fieldLines) == 1 {
			fieldLines[0] += idLineComment
		}
		lines = append(lines, fieldLines...)
		keep = keepsTrailing(fieldLines[0])
	}

	lines = append(lines, Delimiter)
	return strings.Join(lines, "\n") + "\n", nil
}

// Render encodes meta and appends body unchanged.
func Render(meta *Metadata, body string) (string, error) {
	head, err := Encode(meta)
	if err != nil {
		return "", err
	}
	return head + body, nil
}

// split returns the text between the delimiters and everything after the
// closing delimiter line. The block keeps its final line break so a trailing
// block scalar keeps its clip chomping.
func split(raw string) (string, string, bool) {
	start := len(Delimiter) + 1
	if raw[len(Delimiter)] == '\r' {
		start++
	}

	rest := raw[start:]
	offset := 0
	for {
		// The block may be empty, so the closing delimiter can come first.
		var idx int
		if offset == 0 && strings.HasPrefix(rest, Delimiter) {
			idx = 0
		} else {
			i := strings.Index(rest[offset:], "\n"+Delimiter)
			if i < 0 {
				return "", "", false
			}
			idx = offset + i + 1
		}

		after := rest[idx+len(Delimiter):]
		switch {
		case after == "":
			return rest[:idx], "", true
		case strings.HasPrefix(after, "\n"):
			return rest[:idx], after[1:], true
		case strings.HasPrefix(after, "\r\n"):
			return rest[:idx], after[2:], true
		}
		offset = idx + len(Delimiter)
	}
}

func parse(text string) (*Metadata, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return NewMetadata(), nil
	}
	return FromNode(&doc)
}

func encodeField(f Field) (string, error) {
	mapping := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			f.Value,
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "", fmt.Errorf("encode field %s: %w", f.Key, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode field %s: %w", f.Key, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// keepsTrailing reports whether a field line opens a block scalar with keep
// chomping.
func keepsTrailing(line string) bool {
	return opensBlockScalar(line) && (strings.Contains(line, "|+") || strings.Contains(line, ">+"))
}

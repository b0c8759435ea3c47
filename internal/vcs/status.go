package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Status lists uncommitted changes under dir. Paths are relative to the
// repository root.
func Status(ctx context.Context, repo *Repo, dir string) ([]FileStatus, error) {
	backend, err := Backend(repo)
	if err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	rel, err := RelativePath(repo.Root, absDir)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	switch backend {
	case TypeJJ:
		out, err := ExecContext(ctx, DefaultTimeout, repo.Root, "jj", "diff", "--summary", "root:"+quoteFileset(rel))
		if err != nil {
			return nil, fmt.Errorf("jj diff failed: %w", err)
		}
		return parseJJSummary(out), nil
	default:
		out, err := ExecContext(ctx, DefaultTimeout, repo.Root, "git", "status", "--porcelain", "--untracked-files=all", "--", rel)
		if err != nil {
			return nil, fmt.Errorf("git status failed: %w", err)
		}
		return parseGitPorcelain(out), nil
	}
}

// quoteFileset quotes a path for a jj fileset expression.
func quoteFileset(path string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(path, `\`, `\\`), `"`, `\"`) + `"`
}

// parseGitPorcelain parses `git status --porcelain` output.
// Format: XY path, or XY orig -> path for renames. X is the staged
// status and Y the unstaged one; the first non-blank wins.
func parseGitPorcelain(output []byte) []FileStatus {
	var statuses []FileStatus
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}

		code := strings.TrimSpace(line[:2])
		if len(code) > 1 {
			code = code[:1]
		}
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		statuses = append(statuses, FileStatus{
			Path:   strings.Trim(path, `"`),
			Status: statusCode(code),
		})
	}
	return statuses
}

// parseJJSummary parses `jj diff --summary` output.
// Format:
//
//	M file1.go
//	A file2.go
//	D file3.go
func parseJJSummary(output []byte) []FileStatus {
	var statuses []FileStatus
	for _, line := range ParseLines(output) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		statuses = append(statuses, FileStatus{
			Path:   strings.Join(fields[1:], " "),
			Status: statusCode(fields[0]),
		})
	}
	return statuses
}

func statusCode(code string) StatusCode {
	switch code {
	case "M":
		return StatusModified
	case "A":
		return StatusAdded
	case "D":
		return StatusDeleted
	case "R":
		return StatusRenamed
	case "C":
		return StatusCopied
	case "?":
		return StatusUntracked
	}
	return StatusUnknown
}

package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repo is the working copy that contains a path.
type Repo struct {
	Type Type

	// Root is the directory holding the .jj and/or .git marker.
	Root string
}

// Detect walks up from path to the nearest directory holding a .jj
// directory or a .git entry. A .git file (a git worktree) counts, since
// git commands run fine from inside the worktree. Both markers in one
// directory make a TypeColocate repo.
//
// Returns ErrNotInVCS when the filesystem root is reached first.
func Detect(path string) (*Repo, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		hasJJ := isDir(filepath.Join(dir, ".jj"))
		_, gitErr := os.Stat(filepath.Join(dir, ".git"))
		hasGit := gitErr == nil

		switch {
		case hasJJ && hasGit:
			return &Repo{Type: TypeColocate, Root: dir}, nil
		case hasJJ:
			return &Repo{Type: TypeJJ, Root: dir}, nil
		case hasGit:
			return &Repo{Type: TypeGit, Root: dir}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotInVCS
		}
		dir = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// PreferredVCS returns the VCS to query in a colocated repository.
//
// The SPECMIGRATE_VCS environment variable ("git" or "jj") wins; otherwise
// jj is preferred, since in a colocated repo git sees jj's working-copy
// commit as already committed.
func PreferredVCS() Type {
	switch strings.ToLower(os.Getenv("SPECMIGRATE_VCS")) {
	case "git":
		return TypeGit
	}
	return TypeJJ
}

func available(t Type) bool {
	_, err := exec.LookPath(string(t))
	return err == nil
}

// Backend picks the binary to run for repo. Colocated repositories use
// PreferredVCS, falling back to whichever binary exists.
func Backend(repo *Repo) (Type, error) {
	switch repo.Type {
	case TypeGit, TypeJJ:
		if available(repo.Type) {
			return repo.Type, nil
		}
	case TypeColocate:
		hasGit, hasJJ := available(TypeGit), available(TypeJJ)
		switch {
		case hasJJ && (PreferredVCS() == TypeJJ || !hasGit):
			return TypeJJ, nil
		case hasGit:
			return TypeGit, nil
		}
	}
	return "", ErrVCSNotAvailable
}
